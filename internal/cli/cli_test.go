package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-docx-editor/internal/config"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/postvalidate"
	"github.com/nerdneilsfield/go-docx-editor/internal/progress"
	"github.com/nerdneilsfield/go-docx-editor/internal/testutils"
)

// execute 使用测试配置在进程内执行命令，返回标准输出与错误
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, testutils.CreateTestConfig(""), args...)
}

func executeWith(t *testing.T, c *config.Config, args ...string) (string, error) {
	t.Helper()
	// 显式指定配置文件，避免读取家目录中的配置
	c.LogLevel = "error"
	cfg := filepath.Join(t.TempDir(), "docxedit.yaml")
	require.NoError(t, config.SaveConfig(c, cfg))

	root := NewRootCommand("test", "abc123", "today")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func sampleDocx(t *testing.T, dir string) string {
	t.Helper()
	return testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{
		Document: testutils.DocumentXML(
			testutils.Paragraph("Heading1", "Intro"),
			testutils.Paragraph("", "Body text"),
		),
	})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "test (commit abc123, built today)")
}

func TestMissingArgs(t *testing.T) {
	_, err := execute(t, "analyze", "only-one")
	assert.ErrorContains(t, err, "accepts 2 arg(s)")
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	contentPath := filepath.Join(dir, "content.json")
	require.NoError(t, os.WriteFile(contentPath, []byte(`{"content": [
		{"type": "heading", "level": 1, "text": "Title"},
		{"type": "paragraph", "text": "Body"},
		{"type": "chart"}
	]}`), 0o644))
	output := filepath.Join(dir, "new.docx")

	out, err := execute(t, "--format", "json", "create", contentPath, output)
	require.NoError(t, err)
	var result document.CreateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output, result.Output)
	assert.Equal(t, 2, result.Blocks)
	assert.Equal(t, []string{"chart"}, result.Skipped)

	out, err = execute(t, "--format", "json", "analyze", output, filepath.Join(dir, "work"))
	require.NoError(t, err)
	var stats AnalysisStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Blocks)

	t.Run("missing content file", func(t *testing.T) {
		_, err := execute(t, "create", filepath.Join(dir, "none.json"), output)
		assert.ErrorIs(t, err, document.ErrNotFound)
		assert.Equal(t, ExitFailure, ExitCode(err))
	})
}

func TestStageCommands(t *testing.T) {
	dir := t.TempDir()
	input := sampleDocx(t, dir)
	workDir := filepath.Join(dir, "work")

	out, err := execute(t, "--format", "json", "analyze", input, workDir)
	require.NoError(t, err)
	var stats AnalysisStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Blocks)
	assert.Equal(t, 2, stats.Kinds["paragraph"])

	require.NoError(t, edits.Save(filepath.Join(workDir, edits.JSONFile), &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionReplace, TargetID: "b1", NewText: "New body"},
	}}))

	out, err = execute(t, "--format", "json", "validate", workDir)
	require.NoError(t, err)
	var report edits.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)

	_, err = execute(t, "apply", workDir)
	require.NoError(t, err)

	output := filepath.Join(dir, "out.docx")
	_, err = execute(t, "repack", "--update-fields", input, workDir, output)
	require.NoError(t, err)
	assert.Contains(t, string(testutils.ReadZipEntry(t, output, document.SettingsPart)), "updateFields")

	out, err = execute(t, "--format", "json", "postvalidate", output, workDir)
	require.NoError(t, err)
	var post postvalidate.Report
	require.NoError(t, json.Unmarshal([]byte(out), &post))
	assert.True(t, post.Valid)
	assert.Empty(t, post.Warnings)
}

func TestValidateFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	_, err := execute(t, "analyze", sampleDocx(t, dir), workDir)
	require.NoError(t, err)
	require.NoError(t, edits.Save(filepath.Join(workDir, edits.JSONFile), &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionDelete, TargetID: "b9"},
	}}))

	_, err = execute(t, "validate", workDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, edits.ErrValidation)
	assert.Equal(t, ExitFailure, ExitCode(err))

	_, err = execute(t, "apply", workDir)
	assert.ErrorIs(t, err, edits.ErrValidation)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := sampleDocx(t, dir)
	editsPath := filepath.Join(dir, "edits.toml")
	require.NoError(t, os.WriteFile(editsPath, []byte(`
[[edits]]
action = "replace"
target_id = "b0"
new_text = "Overview"
`), 0o644))
	output := filepath.Join(dir, "out.docx")
	workDir := filepath.Join(dir, "work")

	out, err := execute(t, "--format", "json", "run", "--work-dir", workDir, input, editsPath, output)
	require.NoError(t, err)

	var result struct {
		WorkDir string              `json:"work_dir"`
		Post    postvalidate.Report `json:"post_validation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, workDir, result.WorkDir)
	assert.True(t, result.Post.Valid)
	assert.FileExists(t, filepath.Join(workDir, progress.RunFile))

	text, err := postvalidate.FinalText(testutils.ReadZipEntry(t, output, document.DocumentPart))
	require.NoError(t, err)
	assert.Equal(t, "OverviewBody text", text)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "docxedit.yaml")
	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestFlagOverridesConfig(t *testing.T) {
	out, err := execute(t, "--alias-policy", "lenient", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"AliasPolicy": "lenient"`)

	out, err = executeWith(t, testutils.CreateLenientTestConfig(""), "--alias-policy", "strict", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"AliasPolicy": "strict"`)

	out, err = executeWith(t, testutils.CreateLenientTestConfig(""), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"AliasPolicy": "lenient"`)

	_, err = execute(t, "--alias-policy", "loose", "config", "show")
	assert.ErrorContains(t, err, "alias_policy")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"success", nil, ExitOK, ""},
		{"validation failure", fmt.Errorf("wrapped: %w", edits.ErrValidation), ExitFailure, "validation"},
		{"unresolved alias", edits.ErrUnresolvedAlias, ExitFailure, "unresolved_alias"},
		{"stale snapshot", &document.DocxError{Op: "apply", Err: document.ErrStaleSnapshot}, ExitFailure, "stale_snapshot"},
		{"invalid output", postvalidate.ErrInvalidOutput, ExitFailure, "invalid_output"},
		{"fatal error", os.ErrNotExist, ExitFailure, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
			assert.Equal(t, tt.kind, ErrorKind(tt.err))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Hello", preview("Hello", 10))
	assert.Equal(t, "中文…", preview("中文内容很长", 5))
	assert.Equal(t, "row1 …", preview("row1\nrow2", 10))
}
