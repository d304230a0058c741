package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/domain"
)

func TestWindowsTilesHorizonNewestFirst(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	windows := Windows(now, 18, 3)

	require.NotEmpty(t, windows)
	assert.True(t, windows[0].End.Equal(now))
	for i := 1; i < len(windows); i++ {
		assert.True(t, windows[i].End.Equal(windows[i-1].Start), "windows must tile contiguously")
	}
	assert.True(t, !windows[len(windows)-1].Start.Before(now.AddDate(0, -18, 0)))
}

func TestPlanIsCartesianProductOfWindowsAndReportTypes(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tasks := Plan(now, 6, 3)
	windows := Windows(now, 6, 3)

	assert.Len(t, tasks, len(windows)*len(domain.AllReportTypes))
	assert.Equal(t, domain.AllReportTypes[0], tasks[0].ReportType)
}

func TestResumeIndexContinuesAfterCheckpoint(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tasks := Plan(now, 6, 3)

	idx := ResumeIndex(tasks, domain.Checkpoint{WindowIndex: tasks[2].WindowIndex, ReportIndex: tasks[2].ReportIndex})
	assert.Equal(t, 3, idx)
}

func TestResumeIndexWithNoFinishedTaskStartsAtBeginning(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tasks := Plan(now, 6, 3)

	idx := ResumeIndex(tasks, domain.Checkpoint{WindowIndex: -1, ReportIndex: -1})
	assert.Equal(t, 0, idx)
}
