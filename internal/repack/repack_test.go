package repack

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/testutils"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		original string
		body     string
		want     string
	}{
		{
			name:     "prefixed body",
			original: `<?xml version="1.0"?>` + "\n" + `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`,
			body:     `<w:p><w:r><w:t>new</w:t></w:r></w:p>`,
			want:     `<?xml version="1.0"?>` + "\n" + `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>new</w:t></w:r></w:p></w:body></w:document>`,
		},
		{
			name:     "body attributes and trailing content are kept",
			original: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body w14:x="1"><w:p/></w:body></w:document><!-- tail -->`,
			body:     `<w:p/><w:p/>`,
			want:     `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body w14:x="1"><w:p/><w:p/></w:body></w:document><!-- tail -->`,
		},
		{
			name:     "default namespace",
			original: `<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><body><p/></body></document>`,
			body:     `<p>x</p>`,
			want:     `<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><body><p>x</p></body></document>`,
		},
		{
			name:     "other prefix",
			original: `<ns0:document xmlns:ns0="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><ns0:body></ns0:body></ns0:document>`,
			body:     `<ns0:p/>`,
			want:     `<ns0:document xmlns:ns0="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><ns0:body><ns0:p/></ns0:body></ns0:document>`,
		},
		{
			name:     "self-closing body",
			original: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body/></w:document>`,
			body:     `<w:p/>`,
			want:     `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`,
		},
		{
			name:     "multi-byte text around the body",
			original: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><!-- 文档 --><w:body><w:p/></w:body></w:document>`,
			body:     `<w:p><w:r><w:t>中文</w:t></w:r></w:p>`,
			want:     `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><!-- 文档 --><w:body><w:p><w:r><w:t>中文</w:t></w:r></w:p></w:body></w:document>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Wrap([]byte(tt.body), []byte(tt.original))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("missing body", func(t *testing.T) {
		_, err := Wrap([]byte(`<w:p/>`), []byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:document>`))
		assert.ErrorIs(t, err, ErrNoBody)
	})
}

func TestEnableUpdateFields(t *testing.T) {
	const ns = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
	tests := []struct {
		name     string
		settings string
		want     string
	}{
		{
			name:     "existing flag is switched on",
			settings: `<w:settings ` + ns + `><w:updateFields w:val="false"/><w:zoom/></w:settings>`,
			want:     `<w:settings ` + ns + `><w:updateFields w:val="true"/><w:zoom/></w:settings>`,
		},
		{
			name:     "flag is appended",
			settings: `<w:settings ` + ns + `><w:zoom w:percent="100"/></w:settings>`,
			want:     `<w:settings ` + ns + `><w:zoom w:percent="100"/><w:updateFields w:val="true"/></w:settings>`,
		},
		{
			name:     "self-closing root is expanded",
			settings: `<w:settings ` + ns + `/>`,
			want:     `<w:settings ` + ns + `><w:updateFields w:val="true"/></w:settings>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EnableUpdateFields([]byte(tt.settings))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := EnableUpdateFields([]byte(`<x/>`))
	assert.ErrorIs(t, err, ErrNoSettings)
}

func extract(t *testing.T) (docx, workDir string) {
	t.Helper()
	dir := t.TempDir()
	docx = testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{
		Document: testutils.DocumentXML(testutils.Paragraph("Heading1", "Intro"), testutils.Paragraph("", "Body")),
		Media:    map[string][]byte{"word/media/image1.png": testutils.PNGBytes},
	})
	workDir = filepath.Join(dir, "work")
	_, err := document.NewExtractor(zap.NewNop()).Extract(context.Background(), docx, workDir)
	require.NoError(t, err)
	return docx, workDir
}

type rawEntry struct {
	header zip.FileHeader
	raw    []byte
}

func readRaw(t *testing.T, path string) []rawEntry {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var out []rawEntry
	for _, f := range zr.File {
		rc, err := f.OpenRaw()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		out = append(out, rawEntry{header: f.FileHeader, raw: raw})
	}
	return out
}

func TestPackageUnchangedIsIdentical(t *testing.T) {
	docx, workDir := extract(t)
	output := filepath.Join(t.TempDir(), "out.docx")

	result, err := NewRepackager(zap.NewNop()).Package(context.Background(), docx, filepath.Join(workDir, document.ExtractedDir), output)
	require.NoError(t, err)
	assert.Empty(t, result.Rewritten)
	assert.Equal(t, result.Entries, result.Copied)

	want, got := readRaw(t, docx), readRaw(t, output)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].header.Name, got[i].header.Name)
		assert.Equal(t, want[i].header.Method, got[i].header.Method)
		assert.Equal(t, want[i].header.CRC32, got[i].header.CRC32)
		assert.Equal(t, want[i].raw, got[i].raw, want[i].header.Name)
	}
}

func TestPackageRewritesChangedParts(t *testing.T) {
	docx, workDir := extract(t)
	newDoc := []byte(testutils.DocumentXML(testutils.Paragraph("Heading1", "Changed")))
	require.NoError(t, os.WriteFile(document.PartPath(workDir, document.DocumentPart), newDoc, 0o644))

	output := filepath.Join(t.TempDir(), "nested", "out.docx")
	result, err := NewRepackager(nil).Package(context.Background(), docx, filepath.Join(workDir, document.ExtractedDir), output)
	require.NoError(t, err)
	assert.Equal(t, []string{document.DocumentPart}, result.Rewritten)

	assert.Equal(t, newDoc, testutils.ReadZipEntry(t, output, document.DocumentPart))
	assert.Equal(t, testutils.PNGBytes, testutils.ReadZipEntry(t, output, "word/media/image1.png"))

	want, got := readRaw(t, docx), readRaw(t, output)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].header.Name, got[i].header.Name, "entry order")
		assert.Equal(t, want[i].header.Method, got[i].header.Method)
		assert.True(t, want[i].header.Modified.Equal(got[i].header.Modified), want[i].header.Name)
	}
}

func TestPackageMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := NewRepackager(nil).Package(context.Background(), filepath.Join(dir, "none.docx"), dir, filepath.Join(dir, "out.docx"))
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestWithoutTimestamp(t *testing.T) {
	extra := []byte{
		0x55, 0x54, 0x05, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05,
		0x01, 0x00, 0x02, 0x00, 0xaa, 0xbb,
	}
	assert.Equal(t, []byte{0x01, 0x00, 0x02, 0x00, 0xaa, 0xbb}, withoutTimestamp(extra))
	assert.Nil(t, withoutTimestamp(nil))
}
