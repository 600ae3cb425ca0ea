package document

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// 工作目录布局
const (
	ExtractedDir = "extracted"
	PristineDir  = "pristine"
)

// 流水线读写的包内部件
const (
	DocumentPart     = "word/document.xml"
	StylesPart       = "word/styles.xml"
	NumberingPart    = "word/numbering.xml"
	SettingsPart     = "word/settings.xml"
	ContentTypesPart = "[Content_Types].xml"
)

// Package 解压到工作目录中的 DOCX 包
type Package struct {
	Source       string
	WorkDir      string
	Entries      []string
	SourceDigest string
}

// ExtractedDir 返回存放可编辑部件的目录
func (p *Package) ExtractedDir() string {
	return filepath.Join(p.WorkDir, ExtractedDir)
}

// ReadPart 读取已解压的部件，不存在时返回包装 fs.ErrNotExist 的错误
func (p *Package) ReadPart(name string) ([]byte, error) {
	return os.ReadFile(PartPath(p.WorkDir, name))
}

// PartPath 返回部件在 workDir 中的解压位置
func PartPath(workDir, name string) string {
	return filepath.Join(workDir, ExtractedDir, filepath.FromSlash(name))
}

// PristinePath 返回为快照检查保留的 document.xml 原始副本
func PristinePath(workDir string) string {
	return filepath.Join(workDir, PristineDir, filepath.FromSlash(DocumentPart))
}

// IsEditablePart 判断条目是否解压出来供编辑
func IsEditablePart(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".rels")
}

// Digest 返回 data 的十六进制 SHA-256
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extractor 解压 DOCX 包中的 XML 部件
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor 创建解压器
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract 把 path 中的 XML 与关系部件解压到 workDir/extracted
// 二进制条目留在源包中，打包时再复制
func (e *Extractor) Extract(ctx context.Context, path, workDir string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError("extract", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError("extract", path, fmt.Errorf("%w: %v", ErrInvalidFormat, err))
	}

	pkg := &Package{
		Source:       path,
		WorkDir:      workDir,
		SourceDigest: Digest(data),
	}

	hasDocument := false
	for _, file := range zipReader.File {
		pkg.Entries = append(pkg.Entries, file.Name)
		if file.Name == DocumentPart {
			hasDocument = true
		}
	}
	if !hasDocument {
		return nil, newError("extract", path, fmt.Errorf("%w: missing %s", ErrInvalidFormat, DocumentPart))
	}

	// 每次提取都从干净的目录开始
	for _, dir := range []string{ExtractedDir, PristineDir} {
		if err := os.RemoveAll(filepath.Join(workDir, dir)); err != nil {
			return nil, fmt.Errorf("failed to reset work directory: %w", err)
		}
	}

	extracted := 0
	for _, file := range zipReader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() || !IsEditablePart(file.Name) {
			continue
		}
		if err := e.extractFile(file, pkg.ExtractedDir()); err != nil {
			return nil, newError("extract", file.Name, err)
		}
		extracted++
	}

	doc, err := pkg.ReadPart(DocumentPart)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted document: %w", err)
	}
	if err := WriteFileAtomic(PristinePath(workDir), doc, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write pristine document: %w", err)
	}

	e.logger.Info("extracted package",
		zap.String("source", path),
		zap.Int("entries", len(pkg.Entries)),
		zap.Int("parts", extracted))
	return pkg, nil
}

// extractFile 解压单个部件，拒绝逃出 destDir 的路径
func (e *Extractor) extractFile(file *zip.File, destDir string) error {
	path, err := safeJoin(destDir, file.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer reader.Close()

	writer, err := os.Create(path)
	if err != nil {
		return err
	}
	defer writer.Close()

	// 读取时会校验 CRC，损坏的条目在这里报错
	if _, err := io.Copy(writer, reader); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

// safeJoin 把条目名拼接到 destDir 下（ZipSlip 检查）
func safeJoin(destDir, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid file path: %s", name)
	}
	root := filepath.Clean(destDir)
	path := filepath.Join(root, filepath.FromSlash(name))
	if !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path: %s", name)
	}
	return path, nil
}
