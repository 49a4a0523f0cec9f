package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// NamePlaceholder is replaced with a display name in announcement templates.
const NamePlaceholder = "{NAME}"

// StringsConfig holds the configurable text the relay sends on its own behalf.
type StringsConfig struct {
	Welcome    string `json:"welcome"`    // Private acknowledgment after the handshake
	Joined     string `json:"joined"`     // Announcement to peers, {NAME} = newcomer
	Left       string `json:"left"`       // Announcement to peers, {NAME} = departed client
	ServerFull string `json:"serverFull"` // Sent before closing a refused connection
}

// DefaultStrings returns the built-in announcement text.
func DefaultStrings() StringsConfig {
	return StringsConfig{
		Welcome:    "You are now connected!",
		Joined:     "{NAME} joined the chat!",
		Left:       "{NAME} left the chat.",
		ServerFull: "Server is full, try again later.",
	}
}

// JoinedFor renders the join announcement for name.
func (s StringsConfig) JoinedFor(name string) string {
	return strings.ReplaceAll(s.Joined, NamePlaceholder, name)
}

// LeftFor renders the departure announcement for name.
func (s StringsConfig) LeftFor(name string) string {
	return strings.ReplaceAll(s.Left, NamePlaceholder, name)
}

// LoadStrings loads strings.json from configPath. Missing keys keep their
// defaults; a missing file yields DefaultStrings.
func LoadStrings(configPath string) (StringsConfig, error) {
	filePath := filepath.Join(configPath, "strings.json")
	log.Printf("INFO: Loading strings configuration from %s", filePath)

	defaults := DefaultStrings()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: strings.json not found at %s. Using default strings.", filePath)
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read strings file %s: %w", filePath, err)
	}

	loaded := defaults
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("ERROR: Failed to parse strings JSON from %s: %v", filePath, err)
		return defaults, fmt.Errorf("failed to parse strings JSON from %s: %w", filePath, err)
	}

	log.Printf("INFO: Successfully loaded strings configuration.")
	return loaded, nil
}

// ServerConfig defines relay-wide settings.
type ServerConfig struct {
	Host                    string `json:"host"`
	Port                    int    `json:"port"`
	ReadBufferSize          int    `json:"readBufferSize"`          // Max bytes forwarded per read
	WriteTimeoutSeconds     int    `json:"writeTimeoutSeconds"`     // 0 = no deadline on peer writes
	HandshakeTimeoutSeconds int    `json:"handshakeTimeoutSeconds"` // 0 = wait for the name forever
	MaxConnections          int    `json:"maxConnections"`          // 0 = unbounded
	MaxConnectionsPerIP     int    `json:"maxConnectionsPerIP"`     // 0 = unbounded
	LogFile                 string `json:"logFile"`                 // Empty = stderr only
	LogMaxSizeMB            int    `json:"logMaxSizeMB"`            // Rotate after this many megabytes
	LogMaxBackups           int    `json:"logMaxBackups"`
	LogMaxAgeDays           int    `json:"logMaxAgeDays"`
	LogCompress             bool   `json:"logCompress"`
	EventHistoryPath        string `json:"eventHistoryPath"`
	StatusAddr              string `json:"statusAddr"` // Empty = status API disabled
}

// DefaultServerConfig returns the settings used when config.json is absent.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:             "127.0.0.1",
		Port:             12345,
		ReadBufferSize:   1024,
		LogMaxSizeMB:     10,
		LogMaxBackups:    3,
		LogMaxAgeDays:    28,
		EventHistoryPath: filepath.Join("data", "event_history.json"),
	}
}

// Validate rejects values the relay cannot run with.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("invalid readBufferSize: %d", c.ReadBufferSize)
	}
	if c.WriteTimeoutSeconds < 0 || c.HandshakeTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxConnections < 0 || c.MaxConnectionsPerIP < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	return nil
}

// LoadServerConfig loads the server configuration from config.json
func LoadServerConfig(configPath string) (ServerConfig, error) {
	filePath := filepath.Join(configPath, "config.json")
	log.Printf("INFO: Loading server configuration from %s", filePath)

	defaultConfig := DefaultServerConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: config.json not found at %s. Using default settings.", filePath)
			return defaultConfig, nil
		}
		return defaultConfig, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	// Initialize with defaults before unmarshalling
	config := defaultConfig
	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("ERROR: Failed to parse config JSON from %s: %v. Using default settings.", filePath, err)
		return defaultConfig, fmt.Errorf("failed to parse config JSON from %s: %w", filePath, err)
	}
	if err := config.Validate(); err != nil {
		return defaultConfig, fmt.Errorf("invalid config %s: %w", filePath, err)
	}

	log.Printf("INFO: Successfully loaded server configuration from %s", filePath)
	return config, nil
}

// EventConfig defines a scheduled announcement.
type EventConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"` // Cron syntax with seconds field
	Message  string `json:"message"`
	Enabled  bool   `json:"enabled"`
}

// EventsConfig is the root configuration for the announcement scheduler
type EventsConfig struct {
	Enabled bool          `json:"enabled"`
	Events  []EventConfig `json:"events"`
}

// LoadEventsConfig loads the scheduler configuration from events.json
func LoadEventsConfig(configPath string) (EventsConfig, error) {
	filePath := filepath.Join(configPath, "events.json")
	log.Printf("INFO: Loading event scheduler configuration from %s", filePath)

	defaultConfig := EventsConfig{
		Enabled: false,
		Events:  []EventConfig{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("INFO: events.json not found at %s. Event scheduler disabled.", filePath)
			return defaultConfig, nil
		}
		return defaultConfig, fmt.Errorf("failed to read events config file %s: %w", filePath, err)
	}

	var config EventsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("ERROR: Failed to parse events config JSON from %s: %v", filePath, err)
		return defaultConfig, fmt.Errorf("failed to parse events config JSON from %s: %w", filePath, err)
	}

	seen := make(map[string]bool)
	enabledCount := 0
	for _, event := range config.Events {
		if event.ID == "" {
			return defaultConfig, fmt.Errorf("event %q in %s has no id", event.Name, filePath)
		}
		if seen[event.ID] {
			return defaultConfig, fmt.Errorf("duplicate event id %q in %s", event.ID, filePath)
		}
		seen[event.ID] = true
		if event.Enabled {
			enabledCount++
		}
	}

	log.Printf("INFO: Loaded event scheduler configuration: %d event(s), %d enabled", len(config.Events), enabledCount)

	return config, nil
}
