package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 输出格式
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// TableConfig 表格列宽相关参数（单位 twips，1/20 磅）
type TableConfig struct {
	Page              string  `mapstructure:"page"`                 // 页面预设名称，设置后覆盖 default_width
	DefaultWidth      int     `mapstructure:"default_width"`        // 表格未声明宽度时使用的总宽
	MinColumnWidth    int     `mapstructure:"min_column_width"`     // 单列最小宽度
	MaxNewColumnRatio float64 `mapstructure:"max_new_column_ratio"` // 新列最多占总宽的比例
	TwipsPerChar      int     `mapstructure:"twips_per_char"`       // 每个半角字符的估算宽度
	ColumnPadding     int     `mapstructure:"column_padding"`       // 单元格左右边距合计
	ProfilesFile      string  `mapstructure:"profiles_file"`        // 自定义页面预设（TOML）
}

// PostValidateConfig 输出检查参数
type PostValidateConfig struct {
	CheckContent bool `mapstructure:"check_content"` // 对照工作目录核对编辑内容
}

// Config 保存 docxedit 的所有配置
type Config struct {
	Debug        bool   `mapstructure:"debug"`
	LogLevel     string `mapstructure:"log_level"`     // 基础日志级别
	WorkDir      string `mapstructure:"work_dir"`      // run 命令使用的工作目录，为空时使用临时目录
	KeepWorkDir  bool   `mapstructure:"keep_work_dir"` // run 结束后保留临时工作目录
	AliasPolicy  string `mapstructure:"alias_policy"`  // strict 或 lenient
	UpdateFields bool   `mapstructure:"update_fields"` // 打包时让 Word 打开文档时刷新域
	OutputFormat string `mapstructure:"output_format"` // table 或 json

	Table        TableConfig        `mapstructure:"table"`
	PostValidate PostValidateConfig `mapstructure:"post_validate"`
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Debug:        false,
		LogLevel:     "info",
		AliasPolicy:  "strict",
		UpdateFields: false,
		OutputFormat: FormatTable,
		Table: TableConfig{
			DefaultWidth:      9000,
			MinColumnWidth:    400,
			MaxNewColumnRatio: 0.3,
			TwipsPerChar:      200,
			ColumnPadding:     200,
		},
		PostValidate: PostValidateConfig{
			CheckContent: true,
		},
	}
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("work_dir", "")
	v.SetDefault("keep_work_dir", false)
	v.SetDefault("alias_policy", d.AliasPolicy)
	v.SetDefault("update_fields", d.UpdateFields)
	v.SetDefault("output_format", d.OutputFormat)

	v.SetDefault("table.page", "")
	v.SetDefault("table.default_width", d.Table.DefaultWidth)
	v.SetDefault("table.min_column_width", d.Table.MinColumnWidth)
	v.SetDefault("table.max_new_column_ratio", d.Table.MaxNewColumnRatio)
	v.SetDefault("table.twips_per_char", d.Table.TwipsPerChar)
	v.SetDefault("table.column_padding", d.Table.ColumnPadding)
	v.SetDefault("table.profiles_file", "")

	v.SetDefault("post_validate.check_content", d.PostValidate.CheckContent)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch strings.ToLower(c.AliasPolicy) {
	case "strict", "lenient":
	default:
		return fmt.Errorf("invalid alias_policy %q (expected strict or lenient)", c.AliasPolicy)
	}
	switch c.OutputFormat {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("invalid output_format %q (expected table or json)", c.OutputFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	t := c.Table
	for name, w := range map[string]int{
		"table.default_width":    t.DefaultWidth,
		"table.min_column_width": t.MinColumnWidth,
		"table.twips_per_char":   t.TwipsPerChar,
	} {
		if w <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, w)
		}
	}
	if t.ColumnPadding < 0 {
		return fmt.Errorf("table.column_padding must not be negative, got %d", t.ColumnPadding)
	}
	if t.MaxNewColumnRatio <= 0 || t.MaxNewColumnRatio >= 1 {
		return fmt.Errorf("table.max_new_column_ratio must be in (0, 1), got %g", t.MaxNewColumnRatio)
	}
	if t.MinColumnWidth >= t.DefaultWidth {
		return fmt.Errorf("table.min_column_width (%d) must be smaller than table.default_width (%d)", t.MinColumnWidth, t.DefaultWidth)
	}
	return nil
}

// structToMap 将结构体转换为map
func structToMap(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"debug":         config.Debug,
		"log_level":     config.LogLevel,
		"work_dir":      config.WorkDir,
		"keep_work_dir": config.KeepWorkDir,
		"alias_policy":  config.AliasPolicy,
		"update_fields": config.UpdateFields,
		"output_format": config.OutputFormat,
		"table": map[string]interface{}{
			"page":                 config.Table.Page,
			"default_width":        config.Table.DefaultWidth,
			"min_column_width":     config.Table.MinColumnWidth,
			"max_new_column_ratio": config.Table.MaxNewColumnRatio,
			"twips_per_char":       config.Table.TwipsPerChar,
			"column_padding":       config.Table.ColumnPadding,
			"profiles_file":        config.Table.ProfilesFile,
		},
		"post_validate": map[string]interface{}{
			"check_content": config.PostValidate.CheckContent,
		},
	}
}
