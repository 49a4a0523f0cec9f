package scheduler

import (
	"log"
	"strings"
	"time"

	"github.com/stlalpha/chatrelay/internal/config"
	"github.com/stlalpha/chatrelay/internal/logging"
)

// announceEvent expands the event's message and hands it to the announcer
func (s *Scheduler) announceEvent(event config.EventConfig) EventResult {
	result := EventResult{
		EventID:   event.ID,
		StartTime: time.Now(),
	}

	message := event.Message
	for key, val := range s.buildSubstitutions(event, result.StartTime) {
		message = strings.ReplaceAll(message, key, val)
	}
	result.Message = message

	if message == "" {
		log.Printf("WARN: Event '%s' (%s) has an empty message, nothing announced", event.ID, event.Name)
		result.EndTime = time.Now()
		return result
	}

	result.Recipients = s.announcer.Announce(message)
	result.EndTime = time.Now()

	log.Printf("INFO: Event '%s' (%s) announced to %d client(s)", event.ID, event.Name, result.Recipients)
	logging.Debug("Event '%s' message: %q", event.ID, message)
	return result
}

// buildSubstitutions creates a map of placeholder substitutions for an event
func (s *Scheduler) buildSubstitutions(event config.EventConfig, now time.Time) map[string]string {
	return map[string]string{
		"{EVENT_ID}":   event.ID,
		"{EVENT_NAME}": event.Name,
		"{DATE}":       now.Format("2006-01-02"),
		"{TIME}":       now.Format("15:04:05"),
		"{DATETIME}":   now.Format("2006-01-02 15:04:05"),
	}
}
