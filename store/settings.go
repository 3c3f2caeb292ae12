package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownSetting = errors.New("unknown setting")

// Settings is the persisted device configuration.
type Settings struct {
	WiFiSSID      string `json:"wifi_ssid" validate:"max=32"`
	WiFiPassword  string `json:"wifi_password" validate:"max=64"`
	TelegramToken string `json:"telegram_token"`
	GeminiKey     string `json:"gemini_key"`
	GroqKey       string `json:"groq_key"`
	AIProvider    string `json:"ai_provider" validate:"omitempty,oneof=gemini groq"`
}

// SettingsFromEnv fills the defaults used when no settings file exists.
func SettingsFromEnv() Settings {
	return Settings{
		WiFiSSID:      os.Getenv("MICROCLAW_WIFI_SSID"),
		WiFiPassword:  os.Getenv("MICROCLAW_WIFI_PASSWORD"),
		TelegramToken: os.Getenv("MICROCLAW_TELEGRAM_TOKEN"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GroqKey:       os.Getenv("GROQ_API_KEY"),
		AIProvider:    strings.ToLower(os.Getenv("MICROCLAW_AI_PROVIDER")),
	}
}

// SettingsStore keeps Settings in memory and persists them as JSON.
type SettingsStore struct {
	files    *Files
	validate *validator.Validate

	mu  sync.RWMutex
	cur Settings
}

func NewSettingsStore(files *Files) *SettingsStore {
	return &SettingsStore{files: files, validate: validator.New()}
}

// Load reads the settings file. When it does not exist yet, the given
// defaults are validated and written.
func (s *SettingsStore) Load(defaults Settings) error {
	raw := s.files.ReadFile(SettingsPath)
	if raw == "" {
		if err := s.validate.Struct(defaults); err != nil {
			return fmt.Errorf("invalid default settings: %w", err)
		}
		s.mu.Lock()
		s.cur = defaults
		s.mu.Unlock()
		return s.Save()
	}

	var loaded Settings
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		return fmt.Errorf("failed to parse %s: %w", SettingsPath, err)
	}
	if err := s.validate.Struct(loaded); err != nil {
		return fmt.Errorf("invalid settings in %s: %w", SettingsPath, err)
	}
	s.mu.Lock()
	s.cur = loaded
	s.mu.Unlock()
	return nil
}

func (s *SettingsStore) Save() error {
	s.mu.RLock()
	b, err := json.Marshal(s.cur)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.files.WriteFile(SettingsPath, string(b))
}

func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// AIProvider returns the configured provider name.
func (s *SettingsStore) AIProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.AIProvider
}

// Set updates one setting by its JSON key, validates and persists.
func (s *SettingsStore) Set(key, value string) error {
	s.mu.Lock()
	next := s.cur
	switch key {
	case "wifi_ssid":
		next.WiFiSSID = value
	case "wifi_password":
		next.WiFiPassword = value
	case "telegram_token":
		next.TelegramToken = value
	case "gemini_key":
		next.GeminiKey = value
	case "groq_key":
		next.GroqKey = value
	case "ai_provider":
		next.AIProvider = strings.ToLower(strings.TrimSpace(value))
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q (allowed: %s)", ErrUnknownSetting, key, strings.Join(SettingKeys(), ", "))
	}
	if err := s.validate.Struct(next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	s.cur = next
	s.mu.Unlock()
	return s.Save()
}

// SettingKeys lists the keys accepted by Set.
func SettingKeys() []string {
	keys := []string{"wifi_ssid", "wifi_password", "telegram_token", "gemini_key", "groq_key", "ai_provider"}
	sort.Strings(keys)
	return keys
}

// Masked returns a copy with secrets shortened for display.
func (s Settings) Masked() Settings {
	s.WiFiPassword = mask(s.WiFiPassword)
	s.TelegramToken = mask(s.TelegramToken)
	s.GeminiKey = mask(s.GeminiKey)
	s.GroqKey = mask(s.GroqKey)
	return s
}

func mask(v string) string {
	if len(v) <= 8 {
		if v == "" {
			return ""
		}
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}
