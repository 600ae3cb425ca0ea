package edits

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCellAliases(t *testing.T) {
	t.Run("flat list is one row", func(t *testing.T) {
		list, err := Parse([]byte(`{"edits":[{"action":"insert_after","target_id":"b2:r0","cell_style_aliases":["CS0","CS1"]}]}`), "json")
		require.NoError(t, err)
		assert.Equal(t, CellAliases{{"CS0", "CS1"}}, list.Edits[0].CellStyleAliases)
	})

	t.Run("nested list keeps rows", func(t *testing.T) {
		list, err := Parse([]byte(`{"edits":[{"action":"insert_after","target_id":"b2","cell_style_aliases":[["CS0"],["CS1","CS2"]]}]}`), "json")
		require.NoError(t, err)
		aliases := list.Edits[0].CellStyleAliases
		assert.Equal(t, []string{"CS0"}, aliases.Row(0))
		assert.Equal(t, []string{"CS1", "CS2"}, aliases.Row(5), "short lists reuse the last row")
		assert.Equal(t, []string{"CS0", "CS1"}, aliases.Column())
		assert.Equal(t, []string{"CS0", "CS1", "CS2"}, aliases.All())
	})

	t.Run("mixed list is rejected", func(t *testing.T) {
		_, err := Parse([]byte(`{"edits":[{"action":"delete","target_id":"b0","cell_style_aliases":["CS0",["CS1"]]}]}`), "json")
		assert.Error(t, err)
	})
}

func TestParseTOML(t *testing.T) {
	data := `
snapshot = "abc"

[[edits]]
action = "replace"
target_id = "b1"
new_text = "Hello"
runs = [{ text = "Hel", run_style = "RS0" }, { text = "lo", run_style = "RS1" }]

[[edits]]
action = "insert_after"
target_id = "b2:r0"
edit_unit = "row"
new_text = "x|y"
row_style_aliases = ["RS0"]
cell_style_aliases = ["CS0", "CS0"]
`
	list, err := Parse([]byte(data), "toml")
	require.NoError(t, err)
	assert.Equal(t, "abc", list.Snapshot)
	require.Len(t, list.Edits, 2)
	assert.Equal(t, ActionReplace, list.Edits[0].Action)
	assert.Equal(t, []RunSpec{{Text: "Hel", RunStyle: "RS0"}, {Text: "lo", RunStyle: "RS1"}}, list.Edits[0].Runs)
	assert.Equal(t, UnitRow, list.Edits[1].EditUnit)
	assert.Equal(t, CellAliases{{"CS0", "CS0"}}, list.Edits[1].CellStyleAliases)

	_, err = Parse([]byte("edits = ["), "toml")
	assert.Error(t, err)
	_, err = Parse([]byte("{}"), "yaml")
	assert.Error(t, err)
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFromDir(dir)
	assert.ErrorIs(t, err, ErrNoEditsFile)

	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFile), []byte(`[[edits]]
action = "delete"
target_id = "b3"
`), 0o644))
	list, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "b3", list.Edits[0].TargetID)

	// edits.json 优先
	require.NoError(t, Save(filepath.Join(dir, JSONFile), &List{Edits: []Edit{{Action: ActionDelete, TargetID: "b1"}}}))
	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, JSONFile, filepath.Base(path))
	list, err = LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "b1", list.Edits[0].TargetID)
}
