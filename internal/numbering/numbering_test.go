package numbering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const numberingXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:abstractNum w:abstractNumId="0">
    <w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/></w:lvl>
    <w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="lowerLetter"/><w:lvlText w:val="%2)"/></w:lvl>
  </w:abstractNum>
  <w:abstractNum w:abstractNumId="1">
    <w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/></w:lvl>
  </w:abstractNum>
  <w:abstractNum w:abstractNumId="2">
    <w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="upperRoman"/><w:lvlText w:val="%1."/></w:lvl>
    <w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1.%2"/></w:lvl>
  </w:abstractNum>
  <w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>
  <w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>
  <w:num w:numId="3"><w:abstractNumId w:val="2"/></w:num>
  <w:num w:numId="4">
    <w:abstractNumId w:val="0"/>
    <w:lvlOverride w:ilvl="0"><w:startOverride w:val="5"/></w:lvlOverride>
  </w:num>
</w:numbering>`

func TestFormat(t *testing.T) {
	tests := []struct {
		fmt  string
		n    int
		want string
	}{
		{FormatUpperRoman, 12, "XII"},
		{FormatUpperRoman, 4, "IV"},
		{FormatUpperRoman, 1994, "MCMXCIV"},
		{FormatLowerRoman, 9, "ix"},
		{FormatLowerLetter, 1, "a"},
		{FormatLowerLetter, 26, "z"},
		{FormatLowerLetter, 27, "aa"},
		{FormatUpperLetter, 28, "BB"},
		{FormatDecimal, 7, "7"},
		{FormatDecimalZero, 7, "07"},
		{FormatBullet, 3, ""},
		{FormatNone, 3, ""},
		{"ordinal", 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.fmt, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.fmt, tt.n))
		})
	}
}

func TestCounterNestedLevels(t *testing.T) {
	defs, err := Parse([]byte(numberingXML))
	require.NoError(t, err)

	c := NewCounter(defs)
	var got []string
	for _, lvl := range []int{0, 1, 1, 0, 1} {
		p, ok := c.Next("1", lvl)
		require.True(t, ok)
		got = append(got, p)
	}
	assert.Equal(t, []string{"1.", "a)", "b)", "2.", "a)"}, got)
}

func TestCounterMultiLevelText(t *testing.T) {
	defs, err := Parse([]byte(numberingXML))
	require.NoError(t, err)

	c := NewCounter(defs)
	p, _ := c.Next("3", 1)
	assert.Equal(t, "I.1", p, "unused parent level renders its start value")
	p, _ = c.Next("3", 0)
	assert.Equal(t, "I.", p)
	p, _ = c.Next("3", 0)
	assert.Equal(t, "II.", p)
	p, _ = c.Next("3", 1)
	assert.Equal(t, "II.1", p)
}

func TestCounterBulletAndOverride(t *testing.T) {
	defs, err := Parse([]byte(numberingXML))
	require.NoError(t, err)

	c := NewCounter(defs)
	p, ok := c.Next("2", 0)
	assert.True(t, ok)
	assert.Equal(t, "•", p)

	p, _ = c.Next("4", 0)
	assert.Equal(t, "5.", p)

	// 每个编号实例独立计数
	p, _ = c.Next("1", 0)
	assert.Equal(t, "1.", p)
}

func TestCounterUnknown(t *testing.T) {
	c := NewCounter(nil)
	_, ok := c.Next("1", 0)
	assert.False(t, ok)

	defs, err := Parse([]byte(numberingXML))
	require.NoError(t, err)
	c = NewCounter(defs)
	_, ok = c.Next("0", 0)
	assert.False(t, ok)
	_, ok = c.Next("99", 0)
	assert.False(t, ok)
}
