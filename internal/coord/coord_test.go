package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want Coord
	}{
		{"b0", Block(0)},
		{"b12", Block(12)},
		{"b3:r1", Row(3, 1)},
		{"b3:r1c2", Cell(3, 1, 2)},
		{"b3:r1c2p0", CellParagraph(3, 1, 2, 0)},
		{"b3:c4", Column(3, 4)},
		{"b5:p7", Entry(5, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "b", "3", "p1", "b1:", "b1:x2", "b1:r", "b1:r1p2", "b1:c1p2", "b-1", "b1:r1c2p", " b1"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, MustParse("b1:r0").IsTableRef())
	assert.True(t, MustParse("b1:c0").IsTableRef())
	assert.False(t, MustParse("b1:p0").IsTableRef())
	assert.False(t, MustParse("b1").IsTableRef())
	assert.Equal(t, "b9", MustParse("b9:r1c1p1").BlockID())
	assert.Equal(t, "cell_paragraph", KindCellParagraph.String())
}
