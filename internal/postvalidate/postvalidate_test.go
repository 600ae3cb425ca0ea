package postvalidate

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/testutils"
)

func checks(issues []Issue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Check)
	}
	return out
}

func validate(t *testing.T, path, workDir string) *Report {
	t.Helper()
	report, err := NewPostValidator(zap.NewNop(), true).Validate(context.Background(), path, workDir)
	require.NoError(t, err)
	return report
}

func TestValidateWellFormedPackage(t *testing.T) {
	path := testutils.WriteDocx(t, t.TempDir(), "ok.docx", testutils.Fixture{
		Document: testutils.DocumentXML(testutils.Paragraph("Heading1", "Intro")),
	})
	report := validate(t, path, "")
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.NoError(t, report.Err())
}

func TestValidateDetectsProblems(t *testing.T) {
	tests := []struct {
		name     string
		document string
		check    string
		level    Level
	}{
		{
			name:     "malformed document",
			document: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p></w:body></w:document>`,
			check:    CheckWellFormed,
			level:    LevelError,
		},
		{
			name:     "missing body",
			document: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:document>`,
			check:    CheckStructure,
			level:    LevelError,
		},
		{
			name:     "wrong root",
			document: `<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`,
			check:    CheckStructure,
			level:    LevelError,
		},
		{
			name:     "generated prefixes",
			document: `<ns0:document xmlns:ns0="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><ns0:body/></ns0:document>`,
			check:    CheckNamespace,
			level:    LevelWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutils.WriteDocx(t, t.TempDir(), "bad.docx", testutils.Fixture{Document: tt.document})
			report := validate(t, path, "")
			if tt.level == LevelError {
				assert.False(t, report.Valid)
				assert.Contains(t, checks(report.Errors), tt.check)
				assert.ErrorIs(t, report.Err(), ErrInvalidOutput)
			} else {
				assert.True(t, report.Valid)
				assert.Contains(t, checks(report.Warnings), tt.check)
			}
		})
	}
}

func writeZip(t *testing.T, path string, write func(zw *zip.Writer)) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	write(zw)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestValidateArchiveIntegrity(t *testing.T) {
	t.Run("missing parts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "partial.docx")
		writeZip(t, path, func(zw *zip.Writer) {
			w, err := zw.Create(document.DocumentPart)
			require.NoError(t, err)
			_, err = w.Write([]byte(testutils.DocumentXML()))
			require.NoError(t, err)
		})
		report := validate(t, path, "")
		assert.False(t, report.Valid)
		var missing []string
		for _, i := range report.Errors {
			if i.Check == CheckRequired {
				missing = append(missing, i.Part)
			}
		}
		assert.ElementsMatch(t, []string{document.ContentTypesPart, "_rels/.rels", "word/_rels/document.xml.rels"}, missing)
	})

	t.Run("bad checksum", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crc.docx")
		data := []byte("<a/>")
		writeZip(t, path, func(zw *zip.Writer) {
			w, err := zw.CreateRaw(&zip.FileHeader{
				Name:               "word/extra.xml",
				Method:             zip.Store,
				CRC32:              12345,
				CompressedSize64:   uint64(len(data)),
				UncompressedSize64: uint64(len(data)),
			})
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
		})
		report := validate(t, path, "")
		require.NotEmpty(t, report.Errors)
		assert.Equal(t, CheckZip, report.Errors[0].Check)
		assert.Equal(t, "word/extra.xml", report.Errors[0].Part)
	})

	t.Run("not an archive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "text.docx")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
		report := validate(t, path, "")
		assert.False(t, report.Valid)
		assert.Equal(t, []string{CheckZip}, checks(report.Errors))
	})
}

func TestValidateContent(t *testing.T) {
	workDir := t.TempDir()
	original := testutils.DocumentXML(
		testutils.Paragraph("Heading1", "Intro"),
		testutils.Paragraph("", "Obsolete paragraph"),
	)
	a, err := document.NewAnalyzer(zap.NewNop()).AnalyzeParts(context.Background(), document.Parts{
		Document: []byte(original),
		Styles:   []byte(testutils.DefaultStyles),
	})
	require.NoError(t, err)
	require.NoError(t, document.SaveAnalysis(workDir, a))
	require.NoError(t, edits.Save(filepath.Join(workDir, edits.JSONFile), &edits.List{Edits: []edits.Edit{
		{Action: edits.ActionReplace, TargetID: "b0", NewText: "Overview"},
		{Action: edits.ActionInsertAfter, TargetID: "b0", NewText: "Cell A | Cell B", StyleAlias: "S1"},
		{Action: edits.ActionDelete, TargetID: "b1"},
	}}))

	path := testutils.WriteDocx(t, t.TempDir(), "out.docx", testutils.Fixture{
		Document: testutils.DocumentXML(
			testutils.Paragraph("Heading1", "Overview"),
			testutils.Paragraph("", "Cell A"),
			testutils.Paragraph("", "Obsolete paragraph"),
		),
	})

	report := validate(t, path, workDir)
	assert.True(t, report.Valid)
	require.Len(t, report.Warnings, 2)
	assert.Equal(t, CheckContent, report.Warnings[0].Check)
	assert.Contains(t, report.Warnings[0].Message, `"Cell B"`)
	assert.Contains(t, report.Warnings[1].Message, "still present")

	t.Run("missing work dir files are reported as skipped", func(t *testing.T) {
		report := validate(t, path, t.TempDir())
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, CheckContentSkip, report.Warnings[0].Check)
	})
}

func TestFinalText(t *testing.T) {
	text, err := FinalText([]byte(testutils.DocumentXML(
		`<w:p><w:r><w:t xml:space="preserve">Caf</w:t></w:r><w:r><w:t>e&#x301; &amp; co</w:t></w:r></w:p>`,
	)))
	require.NoError(t, err)
	assert.Equal(t, "Café & co", text)
}
