package document

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrNotFound 输入文件不存在
	ErrNotFound = errors.New("file not found")

	// ErrInvalidFormat 不是有效的 DOCX 压缩包
	ErrInvalidFormat = errors.New("invalid docx package")

	// ErrMalformedXML XML 部件无法解析
	ErrMalformedXML = errors.New("malformed xml")

	// ErrStaleSnapshot 分析结果与当前工作目录不一致
	ErrStaleSnapshot = errors.New("analysis snapshot is stale")
)

// DocxError 带有操作与部件上下文的错误
type DocxError struct {
	Op   string // 执行的操作
	Part string // 涉及的包内部件
	Err  error  // 原因
}

// Error 实现error接口
func (e *DocxError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Part, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap 返回原因错误
func (e *DocxError) Unwrap() error {
	return e.Err
}

// newError 创建 DocxError
func newError(op, part string, err error) *DocxError {
	return &DocxError{Op: op, Part: part, Err: err}
}
