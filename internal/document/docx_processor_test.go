package document

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/testutils"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	doc := testutils.DocumentXML(testutils.Paragraph("", "Hello"))
	src := testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{
		Document: doc,
		Media:    map[string][]byte{"word/media/image1.png": testutils.PNGBytes},
	})
	workDir := filepath.Join(dir, "work")

	pkg, err := NewExtractor(zap.NewNop()).Extract(context.Background(), src, workDir)
	require.NoError(t, err)

	t.Run("entries in archive order", func(t *testing.T) {
		assert.Equal(t, "[Content_Types].xml", pkg.Entries[0])
		assert.Contains(t, pkg.Entries, "word/media/image1.png")
		assert.Len(t, pkg.SourceDigest, 64)
	})

	t.Run("xml parts materialized", func(t *testing.T) {
		data, err := pkg.ReadPart(DocumentPart)
		require.NoError(t, err)
		assert.Equal(t, doc, string(data))
		_, err = os.Stat(PartPath(workDir, "_rels/.rels"))
		assert.NoError(t, err)
	})

	t.Run("binary parts left in archive", func(t *testing.T) {
		_, err := os.Stat(PartPath(workDir, "word/media/image1.png"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("pristine copy", func(t *testing.T) {
		data, err := os.ReadFile(PristinePath(workDir))
		require.NoError(t, err)
		assert.Equal(t, doc, string(data))
	})
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()
	extractor := NewExtractor(zap.NewNop())
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := extractor.Extract(ctx, filepath.Join(dir, "missing.docx"), filepath.Join(dir, "w1"))
		assert.ErrorIs(t, err, ErrNotFound)
		var docxErr *DocxError
		assert.ErrorAs(t, err, &docxErr)
		assert.Equal(t, "extract", docxErr.Op)
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(dir, "plain.docx")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		_, err := extractor.Extract(ctx, path, filepath.Join(dir, "w2"))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("zip without document", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("readme.txt")
		require.NoError(t, err)
		_, _ = w.Write([]byte("x"))
		require.NoError(t, zw.Close())
		path := filepath.Join(dir, "empty.docx")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		_, err = extractor.Extract(ctx, path, filepath.Join(dir, "w3"))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("zip slip", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for _, name := range []string{"word/document.xml", "../evil.xml"} {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, _ = w.Write([]byte("<x/>"))
		}
		require.NoError(t, zw.Close())
		path := filepath.Join(dir, "slip.docx")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		_, err := extractor.Extract(ctx, path, filepath.Join(dir, "w4"))
		assert.Error(t, err)
		_, statErr := os.Stat(filepath.Join(dir, "evil.xml"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestAnalysisArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := testutils.WriteDocx(t, dir, "in.docx", testutils.Fixture{
		Document: testutils.DocumentXML(
			testutils.Paragraph("Heading1", "Intro"),
			testutils.Table([]int{3000, 3000}, [][]string{{"a", "b"}}),
		),
	})
	workDir := filepath.Join(dir, "work")
	ctx := context.Background()

	pkg, err := NewExtractor(nil).Extract(ctx, src, workDir)
	require.NoError(t, err)
	a, err := NewAnalyzer(nil).Analyze(ctx, pkg)
	require.NoError(t, err)
	assert.Equal(t, pkg.SourceDigest, a.SourceDigest)

	require.NoError(t, SaveAnalysis(workDir, a))
	loaded, err := LoadAnalysis(workDir)
	require.NoError(t, err)
	assert.Equal(t, a.SessionID, loaded.SessionID)
	assert.Equal(t, a.Text, loaded.Text)
	assert.Equal(t, a.Blocks, loaded.Blocks)
	assert.Equal(t, a.AliasMap, loaded.AliasMap)

	_, err = LoadAnalysis(filepath.Join(dir, "nowhere"))
	assert.ErrorIs(t, err, ErrNotFound)
}
