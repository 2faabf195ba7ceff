// Package settings holds the operator-facing configuration: what to search
// for, when to run and where to send digests.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	MessengerKakao    = "kakao"
	MessengerTelegram = "telegram"
)

// Settings is validated once when loaded and cached in the shared state store.
type Settings struct {
	Keywords       []string `yaml:"keywords" json:"keywords" validate:"dive,required"`
	Categories     []string `yaml:"categories" json:"categories" validate:"min=1,dive,required"`
	Schedule       string   `yaml:"schedule" json:"schedule" validate:"required,datetime=15:04"`
	TimeDiff       int      `yaml:"time_diff" json:"time_diff" validate:"gte=-23,lte=23"`
	CrawlPeriod    int      `yaml:"crawl_period" json:"crawl_period" validate:"gte=1,lte=720"`
	Messenger      string   `yaml:"messenger" json:"messenger" validate:"oneof=kakao telegram"`
	Template       string   `yaml:"template" json:"template"`
	Reranker       string   `yaml:"reranker" json:"reranker,omitempty"`
	TopK           int      `yaml:"top_k" json:"top_k" validate:"gte=1,lte=50"`
	CandidateLimit int      `yaml:"candidate_limit" json:"candidate_limit" validate:"gte=1,lte=500"`
	NotifyEmpty    bool     `yaml:"notify_empty" json:"notify_empty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the settings used for keys absent from the file.
func Default() Settings {
	return Settings{
		Categories:     []string{"cs.CL"},
		Schedule:       "09:00",
		TimeDiff:       9,
		CrawlPeriod:    24,
		Messenger:      MessengerKakao,
		Template:       "default",
		TopK:           5,
		CandidateLimit: 20,
		NotifyEmpty:    true,
	}
}

// Load reads YAML settings over the defaults and validates the result.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML settings over the defaults and validates the result.
func Parse(raw []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Decode reads the JSON snapshot stored in the state store.
func Decode(raw string) (Settings, error) {
	s := Default()
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Encode renders the JSON snapshot stored in the state store.
func (s Settings) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(raw), nil
}

// Validate checks field ranges and enumerations.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Lookback is the crawl period as a duration.
func (s Settings) Lookback() time.Duration {
	return time.Duration(s.CrawlPeriod) * time.Hour
}

// UTCTime converts the local schedule into a UTC hour and minute.
func (s Settings) UTCTime() (hour, minute int, err error) {
	parts := strings.Split(s.Schedule, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule %q is not HH:MM", s.Schedule)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("schedule hour: %w", err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("schedule minute: %w", err)
	}
	hour = ((hour-s.TimeDiff)%24 + 24) % 24
	return hour, minute, nil
}

// CronSpec renders the daily trigger as a five-field cron expression in UTC.
func (s Settings) CronSpec() (string, error) {
	hour, minute, err := s.UTCTime()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *Settings) normalize() {
	s.Keywords = cleanList(s.Keywords)
	s.Categories = cleanList(s.Categories)
	s.Messenger = strings.ToLower(strings.TrimSpace(s.Messenger))
	s.Reranker = strings.TrimSpace(s.Reranker)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
