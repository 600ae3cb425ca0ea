package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AnalysisFile 工作目录中的分析结果文件名
const AnalysisFile = "analysis.json"

// SaveAnalysis 把分析结果写入 workDir/analysis.json
func SaveAnalysis(workDir string, a *Analysis) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", AnalysisFile, err)
	}
	if err := WriteFileAtomic(filepath.Join(workDir, AnalysisFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", AnalysisFile, err)
	}
	return nil
}

// LoadAnalysis 读取 workDir/analysis.json
func LoadAnalysis(workDir string) (*Analysis, error) {
	path := filepath.Join(workDir, AnalysisFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError("load analysis", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", AnalysisFile, err)
	}

	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", AnalysisFile, err)
	}
	if a.SessionID == "" {
		return nil, fmt.Errorf("invalid %s: session_id field is required", AnalysisFile)
	}
	if a.AliasMap == nil {
		a.AliasMap = make(map[string]string)
	}
	if a.StyleAliases == nil {
		a.StyleAliases = make(map[string]string)
	}
	return &a, nil
}

// WriteFileAtomic 先写入目标目录中的临时文件，再重命名到位
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
