// Package scheduler fires configured announcements on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/stlalpha/chatrelay/internal/config"
	"github.com/stlalpha/chatrelay/internal/logging"
)

// Scheduler manages scheduled announcements
type Scheduler struct {
	config        config.EventsConfig
	announcer     Announcer
	cron          *cron.Cron
	history       map[string]*EventHistory
	historyPath   string
	runningEvents map[string]bool
	mu            sync.RWMutex
	stopOnce      sync.Once
}

// NewScheduler creates a new announcement scheduler
func NewScheduler(cfg config.EventsConfig, historyPath string, announcer Announcer) (*Scheduler, error) {
	if announcer == nil {
		return nil, fmt.Errorf("announcer is required")
	}

	history, err := LoadHistory(historyPath)
	if err != nil {
		log.Printf("WARN: Failed to load event history from %s: %v", historyPath, err)
		history = make(map[string]*EventHistory)
	}

	return &Scheduler{
		config:        cfg,
		announcer:     announcer,
		history:       history,
		historyPath:   historyPath,
		runningEvents: make(map[string]bool),
	}, nil
}

// Start schedules every enabled event and blocks until ctx is cancelled.
// It returns immediately when nothing is scheduled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Printf("INFO: Event scheduler disabled")
		return
	}

	// Cron expressions carry a seconds field
	s.cron = cron.New(cron.WithSeconds())

	enabledCount := 0
	for _, event := range s.config.Events {
		if !event.Enabled {
			logging.Debug("Event '%s' (%s) is disabled, skipping", event.ID, event.Name)
			continue
		}

		if err := s.scheduleEvent(event); err != nil {
			log.Printf("ERROR: Failed to schedule event '%s' (%s): %v", event.ID, event.Name, err)
		} else {
			enabledCount++
			log.Printf("INFO: Event '%s' (%s) scheduled: %s", event.ID, event.Name, event.Schedule)
		}
	}

	if enabledCount == 0 {
		log.Printf("WARN: No enabled events to schedule")
		return
	}

	s.cron.Start()
	log.Printf("INFO: Event scheduler running with %d enabled events", enabledCount)

	<-ctx.Done()

	log.Printf("INFO: Event scheduler stopping...")
	s.Stop()
}

// Stop waits for in-flight announcements and saves the history. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
			logging.Debug("All scheduled events completed")
		}

		s.mu.RLock()
		err := SaveHistory(s.historyPath, s.history)
		s.mu.RUnlock()
		if err != nil {
			log.Printf("ERROR: Failed to save event history: %v", err)
		} else {
			log.Printf("INFO: Event history saved to %s", s.historyPath)
		}
	})
}

// scheduleEvent registers an event with the cron scheduler
func (s *Scheduler) scheduleEvent(event config.EventConfig) error {
	_, err := s.cron.AddFunc(event.Schedule, func() {
		s.runEvent(event)
	})
	return err
}

// runEvent announces an event unless a previous run of it is still going
func (s *Scheduler) runEvent(event config.EventConfig) {
	s.mu.Lock()
	if s.runningEvents[event.ID] {
		s.mu.Unlock()
		log.Printf("WARN: Event '%s' (%s) skipped: already running", event.ID, event.Name)
		return
	}
	s.runningEvents[event.ID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.runningEvents, event.ID)
		s.mu.Unlock()
	}()

	result := s.announceEvent(event)
	s.updateHistory(result)
}

// GetHistory returns a copy of the current event history
func (s *Scheduler) GetHistory() map[string]*EventHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	historyCopy := make(map[string]*EventHistory)
	for k, v := range s.history {
		hCopy := *v
		historyCopy[k] = &hCopy
	}
	return historyCopy
}
