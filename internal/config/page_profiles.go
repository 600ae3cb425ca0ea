package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// PageProfile 页面尺寸与左右页边距（twips）
type PageProfile struct {
	Width       int `toml:"width"`
	MarginLeft  int `toml:"margin_left"`
	MarginRight int `toml:"margin_right"`
}

// TextWidth 版心宽度
func (p PageProfile) TextWidth() int {
	return p.Width - p.MarginLeft - p.MarginRight
}

// DefaultPageProfiles 内置的页面预设
func DefaultPageProfiles() map[string]PageProfile {
	return map[string]PageProfile{
		"a4":           {Width: 11906, MarginLeft: 1440, MarginRight: 1440},
		"a4-landscape": {Width: 16838, MarginLeft: 1440, MarginRight: 1440},
		"letter":       {Width: 12240, MarginLeft: 1440, MarginRight: 1440},
		"a4-narrow":    {Width: 11906, MarginLeft: 720, MarginRight: 720},
	}
}

type pageProfilesFile struct {
	Pages map[string]PageProfile `toml:"pages"`
}

// LoadPageProfiles 从 TOML 文件读取自定义页面预设
//
//	[pages.a5]
//	width = 8391
//	margin_left = 1134
//	margin_right = 1134
func LoadPageProfiles(path string) (map[string]PageProfile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("page profiles file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page profiles file: %w", err)
	}
	var file pageProfilesFile
	if err := toml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page profiles: %w", err)
	}

	out := make(map[string]PageProfile, len(file.Pages))
	for name, p := range file.Pages {
		if p.TextWidth() <= 0 {
			return nil, fmt.Errorf("page profile %q has no text width (width %d, margins %d/%d)", name, p.Width, p.MarginLeft, p.MarginRight)
		}
		out[strings.ToLower(name)] = p
	}
	return out, nil
}
