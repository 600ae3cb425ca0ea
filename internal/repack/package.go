package repack

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
)

// Result 描述一次打包的结果
type Result struct {
	Output    string   `json:"output"`
	Entries   int      `json:"entries"`
	Rewritten []string `json:"rewritten"`
	Copied    int      `json:"copied"`
}

// Repackager 按原始压缩包的条目顺序生成新的 DOCX
type Repackager struct {
	logger *zap.Logger
}

// NewRepackager 创建打包器
func NewRepackager(logger *zap.Logger) *Repackager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repackager{logger: logger}
}

// Package 以 original 为基础写出 output
// 工作目录中内容有变化的部件用原条目头重新压缩，其余条目原样复制压缩数据
func (r *Repackager) Package(ctx context.Context, original, partsDir, output string) (*Result, error) {
	zr, err := zip.OpenReader(original)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &document.DocxError{Op: "repack", Part: original, Err: document.ErrNotFound}
		}
		return nil, &document.DocxError{Op: "repack", Part: original, Err: fmt.Errorf("%w: %v", document.ErrInvalidFormat, err)}
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	result := &Result{Output: output}
	if err := r.write(ctx, tmp, &zr.Reader, partsDir, result); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp output: %w", err)
	}
	if err := os.Rename(tmpName, output); err != nil {
		return nil, fmt.Errorf("failed to move output into place: %w", err)
	}

	r.logger.Info("repackaged document",
		zap.String("output", output),
		zap.Int("entries", result.Entries),
		zap.Strings("rewritten", result.Rewritten),
		zap.Int("copied", result.Copied))
	return result, nil
}

func (r *Repackager) write(ctx context.Context, out io.Writer, zr *zip.Reader, partsDir string, result *Result) error {
	zw := zip.NewWriter(out)
	if err := zw.SetComment(zr.Comment); err != nil {
		return fmt.Errorf("failed to set archive comment: %w", err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Entries++

		working, changed, err := changedPart(f, partsDir)
		if err != nil {
			return &document.DocxError{Op: "repack", Part: f.Name, Err: err}
		}
		if !changed {
			if err := zw.Copy(f); err != nil {
				return &document.DocxError{Op: "repack", Part: f.Name, Err: err}
			}
			result.Copied++
			continue
		}

		// 沿用原条目头：名称、压缩方式、修改时间、注释、扩展字段
		header := f.FileHeader
		header.CRC32 = 0
		header.CompressedSize64 = 0
		header.UncompressedSize64 = 0
		header.Extra = withoutTimestamp(f.Extra)
		w, err := zw.CreateHeader(&header)
		if err != nil {
			return &document.DocxError{Op: "repack", Part: f.Name, Err: err}
		}
		if _, err := w.Write(working); err != nil {
			return &document.DocxError{Op: "repack", Part: f.Name, Err: err}
		}
		result.Rewritten = append(result.Rewritten, f.Name)
		r.logger.Debug("rewrote part", zap.String("part", f.Name), zap.Int("bytes", len(working)))
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// changedPart 读取工作目录中的部件，与原条目内容不同时返回新内容
func changedPart(f *zip.File, partsDir string) ([]byte, bool, error) {
	if f.FileInfo().IsDir() || !document.IsEditablePart(f.Name) {
		return nil, false, nil
	}
	working, err := os.ReadFile(filepath.Join(partsDir, filepath.FromSlash(f.Name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	orig, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", document.ErrInvalidFormat, err)
	}
	if bytes.Equal(orig, working) {
		return nil, false, nil
	}
	return working, true, nil
}

// 扩展时间戳字段，CreateHeader 会按 Modified 重新写入
const extendedTimestampID = 0x5455

// withoutTimestamp 去掉扩展字段中的时间戳块，避免重复
func withoutTimestamp(extra []byte) []byte {
	var out []byte
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if 4+size > len(extra) {
			out = append(out, extra...)
			break
		}
		if id != extendedTimestampID {
			out = append(out, extra[:4+size]...)
		}
		extra = extra[4+size:]
	}
	return out
}
