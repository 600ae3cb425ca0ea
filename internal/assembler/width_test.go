package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

func sum(ws []int) int {
	total := 0
	for _, w := range ws {
		total += w
	}
	return total
}

func TestEstimateWidth(t *testing.T) {
	assert.Equal(t, 1, estimateWidth(""))
	assert.Equal(t, 5, estimateWidth("Hello"))
	assert.Equal(t, 4, estimateWidth("中文"))
	assert.Equal(t, 6, estimateWidth("ab中文"))
}

func TestColumnWidths(t *testing.T) {
	tests := []struct {
		name     string
		orig     []int
		total    int
		contents []string
		pos      int
		want     []int
	}{
		{
			name:     "short content",
			orig:     []int{4000, 5000},
			total:    9000,
			contents: []string{"N1", "N2"},
			pos:      1,
			want:     []int{3733, 600, 4667},
		},
		{
			name:  "no content uses the default width",
			orig:  []int{4500, 4500},
			total: 9000,
			pos:   2,
			want:  []int{4200, 4200, 600},
		},
		{
			name:     "long content is capped at thirty percent",
			orig:     []int{5000, 5000},
			total:    10000,
			contents: []string{"a very long column heading that would not fit"},
			pos:      0,
			want:     []int{3000, 3500, 3500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultWidths().columnWidths(tt.orig, tt.total, tt.contents, tt.pos)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, sum(got))
		})
	}
}

func TestColumnWidthsKeepsMinimum(t *testing.T) {
	got := DefaultWidths().columnWidths([]int{100, 8900}, 9000, []string{"x"}, 1)
	require.Len(t, got, 3)
	for _, w := range got {
		assert.GreaterOrEqual(t, w, DefaultWidths().MinColumn)
	}
	assert.Equal(t, 9000, sum(got))
}

func TestTableTotalWidth(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want int
	}{
		{"tblW", `<w:tbl><w:tblPr><w:tblW w:w="7000" w:type="dxa"/></w:tblPr></w:tbl>`, 7000},
		{"grid sum", `<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/></w:tblPr><w:tblGrid><w:gridCol w:w="1000"/><w:gridCol w:w="2000"/></w:tblGrid></w:tbl>`, 3000},
		{"default", `<w:tbl/>`, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := wml.ParseFragment(tt.xml)
			require.NoError(t, err)
			assert.Equal(t, tt.want, DefaultWidths().tableTotalWidth(tbl))
		})
	}
}

func TestColumnWidthsCustomRatio(t *testing.T) {
	w := DefaultWidths()
	w.MaxNewColumnRatio = 0.1
	got := w.columnWidths([]int{5000, 5000}, 10000, []string{"wide content here"}, 1)
	assert.Equal(t, []int{4500, 1000, 4500}, got)
}

func TestSetCellWidth(t *testing.T) {
	tc, err := wml.ParseFragment(`<w:tc><w:tcPr><w:cnfStyle w:val="1"/><w:shd w:fill="FF0000"/></w:tcPr></w:tc>`)
	require.NoError(t, err)
	setCellWidth(tc, 1234)
	assert.Equal(t,
		`<w:tc><w:tcPr><w:cnfStyle w:val="1"/><w:tcW w:w="1234" w:type="dxa"/><w:shd w:fill="FF0000"/></w:tcPr></w:tc>`,
		wml.Serialize(tc))

	bare, err := wml.ParseFragment(`<w:tc><w:p/></w:tc>`)
	require.NoError(t, err)
	setCellWidth(bare, 800)
	assert.Equal(t, `<w:tc><w:tcPr><w:tcW w:w="800" w:type="dxa"/></w:tcPr><w:p/></w:tc>`, wml.Serialize(bare))
}
