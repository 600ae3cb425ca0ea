package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func el(tag string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{Space: "w", Tag: tag, Children: children}
	for k, v := range attrs {
		n.Attrs = append(n.Attrs, Attr{Space: "w", Key: k, Value: v})
	}
	return n
}

func TestKeyPart(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"value attribute", el("jc", map[string]string{"val": "center"}), "jc-center"},
		{"named attributes sorted", el("spacing", map[string]string{"line": "276", "after": "200"}), "spacing-after200_line276"},
		{"bare flag", el("b", nil), "b"},
		{"false flag", el("b", map[string]string{"val": "0"}), ""},
		{"false flag word", el("i", map[string]string{"val": "false"}), ""},
		{"true flag keeps value", el("b", map[string]string{"val": "1"}), "b-1"},
		{"non boolean zero kept", el("sz", map[string]string{"val": "0"}), "sz-0"},
		{
			"nested children sorted",
			el("numPr", nil,
				el("numId", map[string]string{"val": "1"}),
				el("ilvl", map[string]string{"val": "0"})),
			"numPr-ilvl-0_numId-1",
		},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyPart(tt.node))
		})
	}
}

func TestKeyOrderIndependent(t *testing.T) {
	a := []*Node{
		el("pStyle", map[string]string{"val": "Heading1"}),
		el("jc", map[string]string{"val": "center"}),
		el("spacing", map[string]string{"after": "120", "before": "240"}),
		el("rPr", nil, el("b", nil)),
	}
	b := []*Node{
		el("rPr", nil),
		el("spacing", map[string]string{"before": "240", "after": "120"}),
		el("jc", map[string]string{"val": "center"}),
		el("pStyle", map[string]string{"val": "Heading1"}),
	}

	assert.Equal(t, Key(a, "pStyle", "rPr"), Key(b, "pStyle", "rPr"))
	assert.Equal(t, "jc-center_spacing-after120_before240", Key(a, "pStyle", "rPr"))
}

func TestKeyFalseFlagEqualsAbsent(t *testing.T) {
	withFalse := []*Node{el("b", map[string]string{"val": "false"}), el("sz", map[string]string{"val": "24"})}
	without := []*Node{el("sz", map[string]string{"val": "24"})}
	assert.Equal(t, Key(without), Key(withFalse))

	different := []*Node{el("sz", map[string]string{"val": "28"})}
	assert.NotEqual(t, Key(without), Key(different))
}

func TestCanonical(t *testing.T) {
	t.Run("attribute and child order ignored", func(t *testing.T) {
		a := el("trPr", nil,
			el("trHeight", map[string]string{"val": "400", "hRule": "exact"}),
			el("cantSplit", nil))
		b := el("trPr", nil,
			el("cantSplit", nil),
			el("trHeight", map[string]string{"hRule": "exact", "val": "400"}))
		assert.Equal(t, Canonical(a), Canonical(b))
		assert.Equal(t, `<w:trPr><w:cantSplit/><w:trHeight w:hRule="exact" w:val="400"/></w:trPr>`, Canonical(a))
	})

	t.Run("differing value", func(t *testing.T) {
		a := el("shd", map[string]string{"fill": "FFFFFF"})
		b := el("shd", map[string]string{"fill": "EEEEEE"})
		assert.NotEqual(t, Canonical(a), Canonical(b))
	})

	t.Run("text trimmed", func(t *testing.T) {
		a := &Node{Space: "w", Tag: "t", Text: " x "}
		assert.Equal(t, "<w:t>x</w:t>", Canonical(a))
	})
}
