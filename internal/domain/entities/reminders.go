package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReminderPayload is used to build a reminder message for a learner.
type ReminderPayload struct {
	DueCount   int // cards due across all topics
	TopicCount int // topics with at least one due card
}

// DueReminder combines a learner's notification settings with their due workload.
type DueReminder struct {
	LearnerID  uuid.UUID
	ChatID     int64
	Timezone   string
	DueCount   int
	TopicCount int
	LastSentAt *time.Time
}

// ReminderWindow bounds reminders to local waking hours.
type ReminderWindow struct {
	StartHour   int           // first local hour reminders may be sent
	EndHour     int           // last local hour reminders may be sent
	MinInterval time.Duration // minimum gap between two reminders
}

// CanSendNow checks the time window and the interval since the last reminder.
func (r *DueReminder) CanSendNow(now time.Time, w ReminderWindow) bool {
	if r.DueCount <= 0 {
		return false
	}

	loc, err := LoadTimezone(r.Timezone)
	if err != nil {
		loc = time.UTC
	}

	hour := now.In(loc).Hour()
	if hour < w.StartHour || hour > w.EndHour {
		return false
	}

	if r.LastSentAt == nil {
		return true
	}

	return !now.Before(r.LastSentAt.Add(w.MinInterval))
}

// Payload builds the message payload for the reminder.
func (r *DueReminder) Payload() ReminderPayload {
	return ReminderPayload{DueCount: r.DueCount, TopicCount: r.TopicCount}
}

// LearnerNotification is a learner's subscription to due-card reminders.
type LearnerNotification struct {
	LearnerID uuid.UUID `json:"learnerId"`
	ChatID    int64     `json:"chatId"`
	Timezone  string    `json:"timezone"`
	Enabled   bool      `json:"enabled"`
}
