package scheduler

import (
	"time"
)

// Announcer delivers a system line to every connected client and reports
// how many received it.
type Announcer interface {
	Announce(text string) int
}

// EventResult captures the outcome of one announcement
type EventResult struct {
	EventID    string
	StartTime  time.Time
	EndTime    time.Time
	Message    string
	Recipients int
}

// EventHistory tracks historical run data for an event
type EventHistory struct {
	EventID        string    `json:"event_id"`
	LastRun        time.Time `json:"last_run"`
	RunCount       int       `json:"run_count"`
	LastRecipients int       `json:"last_recipients"`
}
