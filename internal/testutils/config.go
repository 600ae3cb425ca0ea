package testutils

import (
	"github.com/nerdneilsfield/go-docx-editor/internal/config"
)

// CreateTestConfig 创建通用测试配置
func CreateTestConfig(workDir string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.WorkDir = workDir
	cfg.OutputFormat = config.FormatJSON
	return cfg
}

// CreateLenientTestConfig 创建宽松别名策略的测试配置
func CreateLenientTestConfig(workDir string) *config.Config {
	cfg := CreateTestConfig(workDir)
	cfg.AliasPolicy = "lenient"
	return cfg
}
