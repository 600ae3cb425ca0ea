package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, NewDefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "docxedit.yaml", `
alias_policy: lenient
output_format: json
table:
  min_column_width: 500
post_validate:
  check_content: false
`)
	t.Setenv("DOCXEDIT_TABLE_TWIPS_PER_CHAR", "180")
	t.Setenv("DOCXEDIT_UPDATE_FIELDS", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "lenient", cfg.AliasPolicy)
	assert.Equal(t, FormatJSON, cfg.OutputFormat)
	assert.Equal(t, 500, cfg.Table.MinColumnWidth)
	assert.Equal(t, 9000, cfg.Table.DefaultWidth)
	assert.Equal(t, 180, cfg.Table.TwipsPerChar)
	assert.True(t, cfg.UpdateFields)
	assert.False(t, cfg.PostValidate.CheckContent)
}

func TestLoadConfigPage(t *testing.T) {
	dir := t.TempDir()

	t.Run("builtin profile", func(t *testing.T) {
		path := writeFile(t, dir, "letter.yaml", "table:\n  page: Letter\n")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 9360, cfg.Table.DefaultWidth)
	})

	t.Run("custom profile", func(t *testing.T) {
		profiles := writeFile(t, dir, "pages.toml", `
[pages.a5]
width = 8391
margin_left = 1134
margin_right = 1134
`)
		path := writeFile(t, dir, "a5.yaml", "table:\n  page: a5\n  profiles_file: "+profiles+"\n")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 6123, cfg.Table.DefaultWidth)
	})

	t.Run("unknown profile", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "table:\n  page: b9\n")
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "unknown table.page")
	})
}

func TestLoadPageProfilesRejectsEmptyWidth(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pages.toml", "[pages.tiny]\nwidth = 1000\nmargin_left = 600\nmargin_right = 600\n")
	_, err := LoadPageProfiles(path)
	assert.ErrorContains(t, err, "no text width")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{"unknown policy", func(c *Config) { c.AliasPolicy = "loose" }, "alias_policy"},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }, "output_format"},
		{"unknown level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"zero width", func(c *Config) { c.Table.DefaultWidth = 0 }, "table.default_width"},
		{"negative padding", func(c *Config) { c.Table.ColumnPadding = -1 }, "column_padding"},
		{"ratio too large", func(c *Config) { c.Table.MaxNewColumnRatio = 1 }, "max_new_column_ratio"},
		{"ratio zero", func(c *Config) { c.Table.MaxNewColumnRatio = 0 }, "max_new_column_ratio"},
		{"minimum above total", func(c *Config) { c.Table.MinColumnWidth = 9000 }, "min_column_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docxedit.yaml")
	cfg := NewDefaultConfig()
	cfg.AliasPolicy = "lenient"
	cfg.Table.MaxNewColumnRatio = 0.25

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
