package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock 每次调用前进 step
func fakeClock(step time.Duration) func() time.Time {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func TestTracker(t *testing.T) {
	t.Run("stages close in order", func(t *testing.T) {
		tr := NewTracker(zap.NewNop(), "in.docx", "out.docx")
		tr.now = fakeClock(100 * time.Millisecond)

		tr.Begin("analyze")
		tr.Begin("apply")
		tr.Finish(nil)

		require.Len(t, tr.Stages, 2)
		assert.Equal(t, StatusCompleted, tr.Stages[0].Status)
		assert.Equal(t, 100*time.Millisecond, tr.Stages[0].Duration)
		assert.Equal(t, StatusCompleted, tr.Stages[1].Status)
		assert.Equal(t, StatusCompleted, tr.Status)
		assert.Equal(t, 200*time.Millisecond, tr.Total())
	})

	t.Run("failure marks the running stage", func(t *testing.T) {
		tr := NewTracker(nil, "in.docx", "out.docx")
		tr.now = fakeClock(time.Second)

		tr.Begin("analyze")
		tr.Begin("apply")
		tr.Finish(errors.New("validation failed"))

		assert.Equal(t, StatusFailed, tr.Status)
		assert.Equal(t, StatusCompleted, tr.Stages[0].Status)
		assert.Equal(t, StatusFailed, tr.Stages[1].Status)
		assert.Equal(t, "validation failed", tr.Stages[1].Error)
	})

	t.Run("finish without stages", func(t *testing.T) {
		tr := NewTracker(nil, "", "")
		tr.Finish(nil)
		assert.Empty(t, tr.Stages)
		assert.Equal(t, StatusCompleted, tr.Status)
	})
}

func TestTrackerSaveAndRender(t *testing.T) {
	tr := NewTracker(zap.NewNop(), "in.docx", "out.docx")
	tr.now = fakeClock(250 * time.Millisecond)
	tr.Begin("repack")
	tr.Finish(nil)

	path := filepath.Join(t.TempDir(), RunFile)
	require.NoError(t, tr.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved struct {
		Input  string  `json:"input"`
		Status Status  `json:"status"`
		Stages []Stage `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "in.docx", saved.Input)
	assert.Equal(t, StatusCompleted, saved.Status)
	require.Len(t, saved.Stages, 1)
	assert.Equal(t, "repack", saved.Stages[0].Name)

	var buf bytes.Buffer
	tr.Render(&buf)
	assert.Contains(t, buf.String(), "repack")
	assert.Contains(t, buf.String(), "250ms")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "12ms", formatDuration(12*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
