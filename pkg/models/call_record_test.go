package models

import (
	"testing"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRecordLifecycle(t *testing.T) {
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	rec := NewCallRecord("physics", "node-a", start, 1)

	assert.True(t, rec.Ongoing())
	assert.Equal(t, 1, rec.Joins)
	assert.Equal(t, 1, rec.PeakParticipants)

	rec.Observe(2)
	rec.Observe(3)
	rec.Observe(2)
	assert.Equal(t, 4, rec.Joins)
	assert.Equal(t, 3, rec.PeakParticipants)

	rec.Complete(start.Add(45 * time.Minute))
	assert.False(t, rec.Ongoing())
	assert.Equal(t, constants.CallStatusCompleted, rec.Status)
	require.NotNil(t, rec.EndedAt)
	assert.Equal(t, int64(45*60), rec.DurationSeconds)

	rec.Complete(start.Add(2 * time.Hour))
	assert.Equal(t, int64(45*60), rec.DurationSeconds)
}

func TestCallRecordCompleteClampsClockSkew(t *testing.T) {
	start := time.Now()
	rec := NewCallRecord("r", "", start, 0)
	assert.Equal(t, 1, rec.PeakParticipants)

	rec.Complete(start.Add(-time.Minute))
	assert.Equal(t, int64(0), rec.DurationSeconds)
	assert.Equal(t, "call_records", rec.TableName())
}
