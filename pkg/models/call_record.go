package models

import (
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
)

// CallRecord is one occupancy period of a room: from the first join to the
// moment the last member leaves.
type CallRecord struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	RoomID           string     `gorm:"size:128;index:idx_call_room_status" json:"roomId"`
	Status           string     `gorm:"size:16;index:idx_call_room_status" json:"status"`
	Instance         string     `gorm:"size:64" json:"instance,omitempty"`
	StartedAt        time.Time  `gorm:"index" json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	Joins            int        `json:"joins"`
	PeakParticipants int        `json:"peakParticipants"`
	DurationSeconds  int64      `json:"durationSeconds"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"-"`
}

func (CallRecord) TableName() string {
	return "call_records"
}

// NewCallRecord starts an ongoing record for room.
func NewCallRecord(room, instance string, at time.Time, participants int) *CallRecord {
	if participants < 1 {
		participants = 1
	}
	return &CallRecord{
		RoomID:           room,
		Status:           constants.CallStatusOngoing,
		Instance:         instance,
		StartedAt:        at.UTC(),
		Joins:            participants,
		PeakParticipants: participants,
	}
}

// Observe counts one more join and tracks the peak.
func (c *CallRecord) Observe(participants int) {
	c.Joins++
	if participants > c.PeakParticipants {
		c.PeakParticipants = participants
	}
}

// Complete ends the record at the given time. Completing twice keeps the first
// end time.
func (c *CallRecord) Complete(at time.Time) {
	if c.Status == constants.CallStatusCompleted {
		return
	}
	at = at.UTC()
	if at.Before(c.StartedAt) {
		at = c.StartedAt
	}
	c.EndedAt = &at
	c.DurationSeconds = int64(at.Sub(c.StartedAt) / time.Second)
	c.Status = constants.CallStatusCompleted
}

func (c *CallRecord) Ongoing() bool {
	return c.Status == constants.CallStatusOngoing
}
