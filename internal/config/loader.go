package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// 配置文件名与环境变量前缀
const (
	ConfigName = ".docxedit"
	EnvPrefix  = "DOCXEDIT"
)

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果配置路径已指定，则直接使用
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 查找家目录中的配置文件
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}

	// 读取环境变量，table.default_width 对应 DOCXEDIT_TABLE_DEFAULT_WIDTH
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，则使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.applyPage(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyPage 按页面预设设置表格默认总宽
func (c *Config) applyPage() error {
	if c.Table.Page == "" {
		return nil
	}
	profiles := DefaultPageProfiles()
	if c.Table.ProfilesFile != "" {
		custom, err := LoadPageProfiles(c.Table.ProfilesFile)
		if err != nil {
			return err
		}
		for name, p := range custom {
			profiles[name] = p
		}
	}
	p, ok := profiles[strings.ToLower(c.Table.Page)]
	if !ok {
		return fmt.Errorf("unknown table.page %q", c.Table.Page)
	}
	c.Table.DefaultWidth = p.TextWidth()
	return nil
}

// DefaultConfigPath 返回默认的配置文件路径
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigName+".yaml"), nil
}

// SaveConfig 将配置保存到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.MergeConfigMap(structToMap(config)); err != nil {
		return err
	}

	// 创建父目录（如果不存在）
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return v.WriteConfigAs(configPath)
}
