// Package repack 把新的正文写回 document.xml，并按原始条目顺序重新打包
package repack

import (
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// 预定义错误
var (
	// ErrNoBody 文档中找不到正文元素
	ErrNoBody = errors.New("document has no body element")

	// ErrNoSettings settings.xml 中找不到根元素
	ErrNoSettings = errors.New("settings part has no settings element")
)

// 根元素上绑定 WordprocessingML 命名空间的前缀
var wordPrefixPattern = regexp2.MustCompile(
	`\bxmlns(?::([A-Za-z_][\w.\-]*))?\s*=\s*["']`+regexp2.Escape(wml.Namespace)+`["']`, regexp2.None)

// wordPrefix 返回文档使用的前缀，默认命名空间时为空
func wordPrefix(xml string) (string, error) {
	m, err := wordPrefixPattern.FindStringMatch(xml)
	if err != nil {
		return "", fmt.Errorf("failed to match namespace declaration: %w", err)
	}
	if m == nil {
		return wml.Prefix, nil
	}
	return m.GroupByNumber(1).String(), nil
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// Wrap 用新的正文内容替换原文档 body 元素的内容
// body 之外的字节（声明、根元素属性、尾部）保持不变
func Wrap(body, original []byte) ([]byte, error) {
	doc := string(original)
	prefix, err := wordPrefix(doc)
	if err != nil {
		return nil, err
	}
	tag := regexp2.Escape(qualify(prefix, "body"))

	// 空正文写成自闭合元素时展开
	selfClosing := regexp2.MustCompile(`^(.*?<`+tag+`\b[^>]*?)\s*/>(.*)$`, regexp2.Singleline)
	if m, err := selfClosing.FindStringMatch(doc); err != nil {
		return nil, fmt.Errorf("failed to locate body: %w", err)
	} else if m != nil {
		out := m.GroupByNumber(1).String() + ">" + string(body) + "</" + qualify(prefix, "body") + ">" + m.GroupByNumber(2).String()
		return []byte(out), nil
	}

	// 结束标签取最后一个
	span := regexp2.MustCompile(`^(.*?<`+tag+`\b[^>]*>)(.*)(</`+tag+`\s*>.*)$`, regexp2.Singleline)
	m, err := span.FindStringMatch(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to locate body: %w", err)
	}
	if m == nil {
		return nil, ErrNoBody
	}
	out := m.GroupByNumber(1).String() + string(body) + m.GroupByNumber(3).String()
	return []byte(out), nil
}

// EnableUpdateFields 让 Word 打开文档时刷新域（目录页码等）
// 已有 updateFields 时改为 true，否则插入到 settings 末尾
func EnableUpdateFields(settings []byte) ([]byte, error) {
	doc := string(settings)
	prefix, err := wordPrefix(doc)
	if err != nil {
		return nil, err
	}
	update := qualify(prefix, "updateFields")
	element := fmt.Sprintf(`<%s %s="true"/>`, update, qualify(prefix, "val"))
	root := regexp2.Escape(qualify(prefix, "settings"))

	existing := regexp2.MustCompile(`<`+regexp2.Escape(update)+`\b[^>]*?/>`, regexp2.None)
	if ok, err := existing.MatchString(doc); err != nil {
		return nil, err
	} else if ok {
		out, err := existing.Replace(doc, element, -1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to update fields setting: %w", err)
		}
		return []byte(out), nil
	}

	closing := regexp2.MustCompile(`</`+root+`\s*>(?!.*</`+root+`)`, regexp2.Singleline)
	if ok, err := closing.MatchString(doc); err != nil {
		return nil, err
	} else if ok {
		out, err := closing.ReplaceFunc(doc, func(m regexp2.Match) string {
			return element + m.String()
		}, -1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to insert fields setting: %w", err)
		}
		return []byte(out), nil
	}

	selfClosing := regexp2.MustCompile(`<(`+root+`\b[^>]*?)\s*/>`, regexp2.None)
	if ok, err := selfClosing.MatchString(doc); err != nil {
		return nil, err
	} else if ok {
		out, err := selfClosing.ReplaceFunc(doc, func(m regexp2.Match) string {
			return "<" + m.GroupByNumber(1).String() + ">" + element + "</" + qualify(prefix, "settings") + ">"
		}, -1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to expand settings element: %w", err)
		}
		return []byte(out), nil
	}
	return nil, ErrNoSettings
}
