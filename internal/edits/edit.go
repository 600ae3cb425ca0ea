// Package edits 定义编辑操作列表，并负责编辑的校验、映射与分段提示生成
package edits

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// 编辑文件名
const (
	JSONFile = "edits.json"
	TOMLFile = "edits.toml"
)

// Action 编辑动作
type Action string

const (
	ActionReplace      Action = "replace"
	ActionInsertAfter  Action = "insert_after"
	ActionInsertBefore Action = "insert_before"
	ActionDelete       Action = "delete"
)

// Valid 判断动作是否受支持
func (a Action) Valid() bool {
	switch a {
	case ActionReplace, ActionInsertAfter, ActionInsertBefore, ActionDelete:
		return true
	}
	return false
}

// IsInsert 判断是否为插入动作
func (a Action) IsInsert() bool {
	return a == ActionInsertAfter || a == ActionInsertBefore
}

// Unit 表格编辑的粒度
type Unit string

const (
	UnitNone   Unit = ""
	UnitTable  Unit = "table"
	UnitRow    Unit = "row"
	UnitColumn Unit = "column"
)

// Valid 判断粒度是否受支持
func (u Unit) Valid() bool {
	switch u {
	case UnitNone, UnitTable, UnitRow, UnitColumn:
		return true
	}
	return false
}

// RunSpec 指定一段文本使用的字符样式
type RunSpec struct {
	Text     string `json:"text"`
	RunStyle string `json:"run_style"`
}

// CellAliases 每行的单元格样式别名
// 输入为一维数组时视为单行
type CellAliases [][]string

// UnmarshalJSON 同时接受 ["CS0","CS1"] 与 [["CS0","CS1"],["CS2"]]
func (c *CellAliases) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("cell_style_aliases must be an array: %w", err)
	}
	if len(items) == 0 {
		*c = CellAliases{}
		return nil
	}

	first := bytes.TrimSpace(items[0])
	if len(first) > 0 && first[0] == '"' {
		var flat []string
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return fmt.Errorf("cell_style_aliases mixes strings and arrays: %w", err)
		}
		*c = CellAliases{flat}
		return nil
	}

	var nested [][]string
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		return fmt.Errorf("cell_style_aliases must be strings or arrays of strings: %w", err)
	}
	*c = nested
	return nil
}

// Row 返回第 i 行的别名，超出范围时沿用最后一行
func (c CellAliases) Row(i int) []string {
	if len(c) == 0 {
		return nil
	}
	if i < len(c) {
		return c[i]
	}
	return c[len(c)-1]
}

// Column 返回列插入时每行使用的别名
// 单行多别名按行依次使用，多行时取每行的第一个
func (c CellAliases) Column() []string {
	if len(c) == 1 {
		return c[0]
	}
	var out []string
	for _, row := range c {
		if len(row) > 0 {
			out = append(out, row[0])
		}
	}
	return out
}

// All 返回全部别名
func (c CellAliases) All() []string {
	var out []string
	for _, row := range c {
		out = append(out, row...)
	}
	return out
}

// Edit 单个编辑操作
type Edit struct {
	Action           Action      `json:"action"`
	TargetID         string      `json:"target_id"`
	SemanticTag      string      `json:"semantic_tag,omitempty"`
	NewText          string      `json:"new_text,omitempty"`
	StyleAlias       string      `json:"style_alias,omitempty"`
	TableStyleAlias  string      `json:"table_style_alias,omitempty"`
	RowStyleAliases  []string    `json:"row_style_aliases,omitempty"`
	CellStyleAliases CellAliases `json:"cell_style_aliases,omitempty"`
	EditUnit         Unit        `json:"edit_unit,omitempty"`
	Runs             []RunSpec   `json:"runs,omitempty"`
	TOCLevelAlias    string      `json:"toc_level_alias,omitempty"`
	AnchorBlockID    string      `json:"anchor_block_id,omitempty"`
}

// List 一次提交的编辑列表
type List struct {
	// Snapshot 编辑所基于的分析会话 ID，为空时不检查
	Snapshot string `json:"snapshot,omitempty"`
	Edits    []Edit `json:"edits"`
}

// ErrNoEditsFile 工作目录中没有编辑文件
var ErrNoEditsFile = errors.New("no edits file found")

// Parse 按格式（json 或 toml）解析编辑列表
func Parse(data []byte, format string) (*List, error) {
	switch strings.ToLower(format) {
	case "toml":
		// TOML 先解码为通用结构再转为 JSON，两种格式共用同一套字段规则
		var raw map[string]interface{}
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse toml edits: %w", err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert toml edits: %w", err)
		}
		data = converted
	case "json", "":
	default:
		return nil, fmt.Errorf("unsupported edits format: %s", format)
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse edits: %w", err)
	}
	return &list, nil
}

// Load 从文件加载编辑列表，格式由扩展名决定
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edits file: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Parse(data, format)
}

// Find 返回工作目录中的编辑文件，edits.json 优先
func Find(workDir string) (string, error) {
	for _, name := range []string{JSONFile, TOMLFile} {
		path := filepath.Join(workDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoEditsFile, workDir)
}

// LoadFromDir 加载工作目录中的编辑文件
func LoadFromDir(workDir string) (*List, error) {
	path, err := Find(workDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save 以 JSON 格式保存编辑列表
func Save(path string, list *List) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal edits: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write edits file: %w", err)
	}
	return nil
}
