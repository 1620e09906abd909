package report

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
)

func unix(year, month, day, hour, min, sec int) int64 {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC).Unix()
}

func TestCountPerYear(t *testing.T) {
	submissions := []domain.Submission{
		// The last second of 2021 buckets to 2021 under UTC.
		{IssueNumber: 1, Opened: unix(2021, 12, 31, 23, 59, 59), Closed: unix(2022, 1, 1, 0, 0, 1)},
		{IssueNumber: 2, Opened: unix(2022, 3, 1, 0, 0, 0), Closed: 0},
		{IssueNumber: 3, Opened: unix(2022, 7, 1, 0, 0, 0), Closed: unix(2022, 8, 1, 0, 0, 0)},
	}

	opened := CountOpenedPerYear(submissions)
	assert.Equal(t, map[int]int{2021: 1, 2022: 2}, opened)

	// The Closed == 0 sentinel is excluded from the closed buckets entirely.
	closed := CountClosedPerYear(submissions)
	assert.Equal(t, map[int]int{2022: 2}, closed)
}

func TestReporter_Run(t *testing.T) {
	submissions := []domain.Submission{
		{IssueNumber: 1, Opened: unix(2021, 6, 1, 0, 0, 0), Closed: unix(2021, 9, 1, 0, 0, 0)},
		{IssueNumber: 2, Opened: unix(2022, 6, 1, 0, 0, 0), Closed: 0},
	}

	var out bytes.Buffer
	dir := filepath.Join(t.TempDir(), "plots")
	r := New(log.New(io.Discard, "", 0), &out)

	require.NoError(t, r.Run(submissions, dir))

	assert.FileExists(t, filepath.Join(dir, openedPlotName))
	assert.FileExists(t, filepath.Join(dir, closedPlotName))

	text := out.String()
	assert.Contains(t, text, "2021")
	assert.Contains(t, text, "2022")
	assert.Contains(t, text, "Time to close (days)")
}

func TestReporter_EmptyOpenedIsFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	r := New(log.New(io.Discard, "", 0), io.Discard)

	err := r.Run(nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no opened submissions")

	// Nothing was produced.
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReporter_EmptyClosedStillProducesOpenedOutputs(t *testing.T) {
	submissions := []domain.Submission{
		{IssueNumber: 1, Opened: unix(2023, 1, 1, 0, 0, 0), Closed: 0},
	}

	var out bytes.Buffer
	dir := filepath.Join(t.TempDir(), "plots")
	r := New(log.New(io.Discard, "", 0), &out)

	err := r.Run(submissions, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no closed submissions")

	assert.FileExists(t, filepath.Join(dir, openedPlotName))
	assert.NoFileExists(t, filepath.Join(dir, closedPlotName))
	assert.Contains(t, out.String(), "2023")
	assert.NotContains(t, out.String(), "Time to close")
}
