package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/postvalidate"
	"github.com/nerdneilsfield/go-docx-editor/internal/testutils"
)

func sampleDocx(t *testing.T, dir string) string {
	t.Helper()
	return testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{
		Document: testutils.DocumentXML(
			testutils.Paragraph("Heading1", "Intro"),
			testutils.Paragraph("", "Old paragraph"),
			testutils.Table([]int{4000, 5000}, [][]string{{"A", "B"}, {"C", "D"}}),
		),
		Media: map[string][]byte{"word/media/image1.png": testutils.PNGBytes},
	})
}

func newPipeline(opts Options) *Pipeline {
	return New(zap.NewNop(), opts)
}

func writeEdits(t *testing.T, workDir string, list *edits.List) {
	t.Helper()
	require.NoError(t, edits.Save(filepath.Join(workDir, edits.JSONFile), list))
}

func readPart(t *testing.T, workDir, part string) string {
	t.Helper()
	data, err := os.ReadFile(document.PartPath(workDir, part))
	require.NoError(t, err)
	return string(data)
}

func TestStages(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := sampleDocx(t, dir)
	workDir := filepath.Join(dir, "work")
	p := newPipeline(DefaultOptions())

	a, err := p.Analyze(ctx, input, workDir)
	require.NoError(t, err)
	require.Len(t, a.Blocks, 3)
	assert.FileExists(t, filepath.Join(workDir, document.AnalysisFile))

	tbl := a.Blocks[2]
	cs := tbl.CellStyleMap[document.CellKey(0, 0)]
	writeEdits(t, workDir, &edits.List{Snapshot: a.SessionID, Edits: []edits.Edit{
		{Action: edits.ActionReplace, TargetID: "b0", NewText: "Overview"},
		{Action: edits.ActionDelete, TargetID: "b1"},
		{
			Action: edits.ActionInsertAfter, TargetID: "b2:r1", EditUnit: edits.UnitRow, NewText: "E | F",
			RowStyleAliases: []string{tbl.RowStyleAliases[1]}, CellStyleAliases: edits.CellAliases{{cs, cs}},
		},
	}})

	report, err := p.Validate(ctx, workDir)
	require.NoError(t, err)
	assert.True(t, report.Valid, report.Errors)
	assert.FileExists(t, filepath.Join(workDir, ReportFile))

	applied, err := p.Apply(ctx, workDir)
	require.NoError(t, err)
	assert.Greater(t, applied.Bytes, 0)

	doc := readPart(t, workDir, document.DocumentPart)
	assert.Contains(t, doc, "Overview")
	assert.NotContains(t, doc, "Old paragraph")
	assert.Contains(t, doc, "<w:sectPr")

	t.Run("apply is repeatable", func(t *testing.T) {
		_, err := p.Apply(ctx, workDir)
		require.NoError(t, err)
		assert.Equal(t, doc, readPart(t, workDir, document.DocumentPart))
	})

	output := filepath.Join(dir, "out.docx")
	packed, err := p.Repack(ctx, input, workDir, output)
	require.NoError(t, err)
	assert.Equal(t, []string{document.DocumentPart}, packed.Rewritten)
	assert.Equal(t, testutils.PNGBytes, testutils.ReadZipEntry(t, output, "word/media/image1.png"))

	post, err := p.PostValidate(ctx, output, workDir)
	require.NoError(t, err)
	assert.True(t, post.Valid)
	assert.Empty(t, post.Warnings)

	text, err := postvalidate.FinalText(testutils.ReadZipEntry(t, output, document.DocumentPart))
	require.NoError(t, err)
	assert.Equal(t, "OverviewABCDEF", text)
}

func TestApplyWithoutEditsKeepsDocumentBytes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := testutils.DocumentXML(
		testutils.Paragraph("Heading1", "Intro"),
		"\n  <!-- keep me -->\n  ",
		testutils.Paragraph("", "Body"),
	)
	doc = strings.Replace(doc, "</w:sectPr></w:body>", "</w:sectPr>\n</w:body>", 1)
	input := testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{Document: doc})
	workDir := filepath.Join(dir, "work")
	p := newPipeline(DefaultOptions())

	_, err := p.Analyze(ctx, input, workDir)
	require.NoError(t, err)
	writeEdits(t, workDir, &edits.List{Edits: []edits.Edit{}})

	_, err = p.Apply(ctx, workDir)
	require.NoError(t, err)
	assert.Equal(t, doc, readPart(t, workDir, document.DocumentPart))

	output := filepath.Join(dir, "out.docx")
	result, err := p.Repack(ctx, input, workDir, output)
	require.NoError(t, err)
	assert.Empty(t, result.Rewritten)
}

func TestApplyRefusesInvalidEdits(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	p := newPipeline(DefaultOptions())
	_, err := p.Analyze(ctx, sampleDocx(t, dir), workDir)
	require.NoError(t, err)
	before := readPart(t, workDir, document.DocumentPart)

	writeEdits(t, workDir, &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionReplace, TargetID: "b0", NewText: "Overview"},
		{Action: edits.ActionReplace, TargetID: "b42", NewText: "nowhere"},
	}})

	result, err := p.Apply(ctx, workDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, edits.ErrValidation)
	require.NotNil(t, result)
	assert.False(t, result.Report.Valid)
	assert.Equal(t, before, readPart(t, workDir, document.DocumentPart))
}

func TestApplyDetectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	p := newPipeline(DefaultOptions())
	_, err := p.Analyze(ctx, sampleDocx(t, dir), workDir)
	require.NoError(t, err)
	writeEdits(t, workDir, &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionDelete, TargetID: "b1"},
	}})

	pristine := document.PristinePath(workDir)
	data, err := os.ReadFile(pristine)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pristine, []byte(strings.Replace(string(data), "Intro", "Changed", 1)), 0o644))

	_, err = p.Apply(ctx, workDir)
	assert.ErrorIs(t, err, document.ErrStaleSnapshot)
}

func TestRepackUpdateFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := sampleDocx(t, dir)
	workDir := filepath.Join(dir, "work")

	opts := DefaultOptions()
	opts.UpdateFields = true
	p := newPipeline(opts)
	_, err := p.Analyze(ctx, input, workDir)
	require.NoError(t, err)

	output := filepath.Join(dir, "out.docx")
	result, err := p.Repack(ctx, input, workDir, output)
	require.NoError(t, err)
	assert.Equal(t, []string{document.SettingsPart}, result.Rewritten)
	assert.Contains(t, string(testutils.ReadZipEntry(t, output, document.SettingsPart)), `<w:updateFields w:val="true"/>`)
}

func TestPrompts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	p := newPipeline(DefaultOptions())
	_, err := p.Analyze(ctx, sampleDocx(t, dir), workDir)
	require.NoError(t, err)
	writeEdits(t, workDir, &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionReplace, TargetID: "b1", NewText: "New paragraph"},
	}})

	_, err = p.Prompts(ctx, workDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(workDir, edits.PromptsFile))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := sampleDocx(t, dir)
	editsPath := filepath.Join(dir, "edits.json")
	require.NoError(t, edits.Save(editsPath, &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionInsertBefore, TargetID: "b0", NewText: "Preface", StyleAlias: "S1"},
	}}))
	output := filepath.Join(dir, "out.docx")

	var stages []string
	result, err := newPipeline(DefaultOptions()).Run(context.Background(), input, editsPath, output, filepath.Join(dir, "work"),
		func(name string) { stages = append(stages, name) })
	require.NoError(t, err)
	assert.Equal(t, []string{"analyze", "apply", "repack", "postvalidate"}, stages)
	assert.True(t, result.PostReport.Valid)

	text, err := postvalidate.FinalText(testutils.ReadZipEntry(t, output, document.DocumentPart))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "PrefaceIntro"), text)
}
