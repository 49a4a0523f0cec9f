package scheduler

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/stlalpha/chatrelay/internal/logging"
)

// LoadHistory loads event history from a JSON file
func LoadHistory(path string) (map[string]*EventHistory, error) {
	history := make(map[string]*EventHistory)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("INFO: Event history file not found at %s, starting with empty history", path)
		return history, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var historyList []EventHistory
	if err := json.Unmarshal(data, &historyList); err != nil {
		return nil, err
	}

	for i := range historyList {
		history[historyList[i].EventID] = &historyList[i]
	}

	log.Printf("INFO: Loaded event history for %d events from %s", len(history), path)
	return history, nil
}

// SaveHistory saves event history to a JSON file, ordered by event ID
func SaveHistory(path string, history map[string]*EventHistory) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	historyList := make([]EventHistory, 0, len(history))
	for _, h := range history {
		historyList = append(historyList, *h)
	}
	sort.Slice(historyList, func(i, j int) bool {
		return historyList[i].EventID < historyList[j].EventID
	})

	data, err := json.MarshalIndent(historyList, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	logging.Debug("Saved event history for %d events to %s", len(history), path)
	return nil
}

// updateHistory records a completed announcement
func (s *Scheduler) updateHistory(result EventResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.history[result.EventID]
	if !exists {
		h = &EventHistory{
			EventID: result.EventID,
		}
		s.history[result.EventID] = h
	}

	h.LastRun = result.EndTime
	h.RunCount++
	h.LastRecipients = result.Recipients

	logging.Debug("Updated history for event '%s': runs=%d, recipients=%d",
		result.EventID, h.RunCount, h.LastRecipients)
}
