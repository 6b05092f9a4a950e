package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration. The bearer token is
// deliberately absent: it comes from the environment and is never persisted.
type Config struct {
	BaseURL        string `json:"base_url"`
	Theme          string `json:"theme"`
	HandoffDelayMS int    `json:"handoff_delay_ms"`
}

// Manager handles configuration persistence
type Manager struct {
	configPath string
	config     *Config
}

// NewManager creates a new config manager
func NewManager() (*Manager, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Join(homeDir, ".concierge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.json")

	m := &Manager{
		configPath: configPath,
		config:     &Config{},
	}

	// Load existing config if it exists
	if err := m.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return m, nil
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetBaseURL returns the configured backend URL
func (m *Manager) GetBaseURL() string {
	return m.config.BaseURL
}

// GetTheme returns the UI theme name
func (m *Manager) GetTheme() string {
	if m.config.Theme == "" {
		return "default"
	}
	return m.config.Theme
}

// GetHandoffDelayMS returns the hand-off grace period override, 0 meaning
// use the built-in default.
func (m *Manager) GetHandoffDelayMS() int {
	return m.config.HandoffDelayMS
}

// SetDefaults updates the persisted base URL and theme
func (m *Manager) SetDefaults(baseURL, theme string) error {
	m.config.BaseURL = baseURL
	m.config.Theme = theme
	return m.Save()
}
