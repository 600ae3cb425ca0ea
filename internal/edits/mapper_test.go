package edits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mapOne(t *testing.T, m *Mapper, e Edit) BlockSpec {
	t.Helper()
	specs, err := m.Map(sampleAnalysis(t), &List{Edits: []Edit{e}})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	return specs[0]
}

func TestMapParagraph(t *testing.T) {
	m := NewMapper(zap.NewNop(), PolicyStrict)

	t.Run("replace keeps the first run style of the target", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionReplace, TargetID: "b1", NewText: "Bye"})
		assert.Equal(t, "Normal", spec.StyleKey)
		require.Len(t, spec.RunXML, 1)
		assert.Contains(t, spec.RunXML[0], "<w:b/>")
		assert.Contains(t, spec.RunXML[0], ">Bye</w:t>")
		assert.False(t, spec.InPlace)
	})

	t.Run("explicit runs", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionReplace, TargetID: "b1", NewText: "Bye all", Runs: []RunSpec{
			{Text: "Bye ", RunStyle: "RS0"},
			{Text: "all", RunStyle: "RS1"},
		}})
		require.Len(t, spec.RunXML, 2)
		assert.Contains(t, spec.RunXML[0], "<w:b/>")
		assert.Contains(t, spec.RunXML[0], `xml:space="preserve"`)
		assert.NotContains(t, spec.RunXML[1], "<w:b/>")
		assert.Contains(t, spec.RunXML[1], ">all</w:t>")
	})

	t.Run("insert uses the alias template", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionInsertAfter, TargetID: "b1", NewText: "Scope", StyleAlias: "S1"})
		assert.Equal(t, "Heading1", spec.StyleKey)
		assert.Len(t, spec.RunXML, 1)
		assert.False(t, spec.FallbackUsed)
	})

	t.Run("embedded objects are substituted in place", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionReplace, TargetID: "b4", NewText: "Figure 2"})
		assert.True(t, spec.InPlace)
		assert.Empty(t, spec.RunXML)
	})

	t.Run("multi-line content is left to the assembler", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionReplace, TargetID: "b2:r0c0p0", NewText: "a\nb"})
		assert.Empty(t, spec.RunXML)
		assert.Equal(t, "a\nb", spec.Content)
	})

	t.Run("delete carries only the target", func(t *testing.T) {
		spec := mapOne(t, m, Edit{Action: ActionDelete, TargetID: "b2:r1"})
		assert.Equal(t, UnitRow, spec.Unit)
		assert.Equal(t, 1, spec.Target.Row)
		assert.Empty(t, spec.StyleKey)
	})
}

func TestMapAliasPolicy(t *testing.T) {
	e := Edit{Action: ActionInsertAfter, TargetID: "b1", NewText: "New", StyleAlias: "S99"}

	_, err := NewMapper(zap.NewNop(), PolicyStrict).Map(sampleAnalysis(t), &List{Edits: []Edit{e}})
	assert.ErrorIs(t, err, ErrUnresolvedAlias)

	spec := mapOne(t, NewMapper(zap.NewNop(), PolicyLenient), e)
	assert.True(t, spec.FallbackUsed)
	assert.Equal(t, "Heading1", spec.StyleKey)
	require.Len(t, spec.RunXML, 1)
	assert.Contains(t, spec.RunXML[0], ">New</w:t>")
}

func TestMapTableReplaceReusesBlockAliases(t *testing.T) {
	m := NewMapper(zap.NewNop(), PolicyStrict)
	spec := mapOne(t, m, Edit{Action: ActionReplace, TargetID: "b2", EditUnit: UnitTable, NewText: "x|y\nz|w"})
	assert.Equal(t, UnitTable, spec.Unit)
	assert.Equal(t, "T1", spec.TableAlias)
	assert.Equal(t, []string{"RS0", "RS0"}, spec.RowAliases)
	assert.Equal(t, CellAliases{{"CS0", "CS0"}, {"CS0", "CS0"}}, spec.CellAliases)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)
	p, err = ParsePolicy(" Lenient ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)
	_, err = ParsePolicy("loose")
	assert.Error(t, err)
}
