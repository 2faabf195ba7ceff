package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "PAPERNOTIFIER"

	RoleAll       = "all"
	RoleScheduler = "scheduler"
	RoleCrawler   = "crawler"
	RoleNotifier  = "notifier"
)

// Config holds the service-level settings: where the collaborators live and
// how long calls to them may take. Operator settings (keywords, schedule)
// live in the settings package.
type Config struct {
	Role         string          `mapstructure:"role"`
	SettingsPath string          `mapstructure:"settings_path"`
	Logging      LoggingConfig   `mapstructure:"logging"`
	HTTP         HTTPConfig      `mapstructure:"http"`
	Index        IndexConfig     `mapstructure:"index"`
	State        StateConfig     `mapstructure:"state"`
	Queue        QueueConfig     `mapstructure:"queue"`
	Feed         FeedConfig      `mapstructure:"feed"`
	ML           MLConfig        `mapstructure:"ml"`
	OpenAI       OpenAIConfig    `mapstructure:"openai"`
	Kakao        KakaoConfig     `mapstructure:"kakao"`
	Telegram     TelegramConfig  `mapstructure:"telegram"`
	Timeouts     TimeoutConfig   `mapstructure:"timeouts"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler"`
	Cache        CacheConfig     `mapstructure:"cache"`
}

// LoggingConfig toggles zap level and development encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// HTTPConfig controls the admin server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// IndexConfig selects the full-text index backend.
type IndexConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StateConfig selects the shared key-value store.
type StateConfig struct {
	Driver   string `mapstructure:"driver"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig selects how tasks reach the workers.
type QueueConfig struct {
	Driver             string `mapstructure:"driver"`
	Capacity           int    `mapstructure:"capacity"`
	ProjectID          string `mapstructure:"project_id"`
	CrawlTopic         string `mapstructure:"crawl_topic"`
	NotifyTopic        string `mapstructure:"notify_topic"`
	CrawlSubscription  string `mapstructure:"crawl_subscription"`
	NotifySubscription string `mapstructure:"notify_subscription"`
}

// FeedConfig describes the arXiv endpoints.
type FeedConfig struct {
	Strategy   string `mapstructure:"strategy"`
	APIURL     string `mapstructure:"api_url"`
	ListingURL string `mapstructure:"listing_url"`
	PageSize   int    `mapstructure:"page_size"`
	MaxResults int    `mapstructure:"max_results"`
}

// MLConfig describes the cross-encoder scoring service.
type MLConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Activation string `mapstructure:"activation"`
}

// OpenAIConfig defines how to contact a chat-completions API.
type OpenAIConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// KakaoConfig wires the Kakao memo API.
type KakaoConfig struct {
	AccessToken string `mapstructure:"access_token"`
	APIURL      string `mapstructure:"api_url"`
	LinkURL     string `mapstructure:"link_url"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIURL   string `mapstructure:"api_url"`
}

// TimeoutConfig bounds every external call independently.
type TimeoutConfig struct {
	Feed      time.Duration `mapstructure:"feed"`
	Index     time.Duration `mapstructure:"index"`
	Scorer    time.Duration `mapstructure:"scorer"`
	Messenger time.Duration `mapstructure:"messenger"`
}

// SchedulerConfig tunes manual triggers and window advancement.
type SchedulerConfig struct {
	RunNowDelay time.Duration `mapstructure:"run_now_delay"`
	WindowSlack time.Duration `mapstructure:"window_slack"`
}

// CacheConfig sets the lifetime of the recent papers cache.
type CacheConfig struct {
	RecentTTL time.Duration `mapstructure:"recent_ttl"`
}

// Load builds a Config from an optional file and PAPERNOTIFIER_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", RoleAll)
	v.SetDefault("settings_path", "settings.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("index.driver", "sqlite")
	v.SetDefault("index.dsn", "papers.db")
	v.SetDefault("index.max_conns", 4)
	v.SetDefault("state.driver", "memory")
	v.SetDefault("state.addr", "localhost:6379")
	v.SetDefault("state.db", 0)
	v.SetDefault("queue.driver", "none")
	v.SetDefault("queue.capacity", 16)
	v.SetDefault("queue.crawl_topic", "papers-crawl")
	v.SetDefault("queue.notify_topic", "papers-notify")
	v.SetDefault("queue.crawl_subscription", "papers-crawl-worker")
	v.SetDefault("queue.notify_subscription", "papers-notify-worker")
	v.SetDefault("feed.strategy", "arxiv-api")
	v.SetDefault("feed.api_url", "http://export.arxiv.org/api/query")
	v.SetDefault("feed.listing_url", "https://export.arxiv.org/list")
	v.SetDefault("feed.page_size", 200)
	v.SetDefault("feed.max_results", 1000)
	v.SetDefault("ml.endpoint", "http://localhost:8000")
	v.SetDefault("ml.activation", "sigmoid")
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("kakao.api_url", "https://kapi.kakao.com")
	v.SetDefault("kakao.link_url", "https://arxiv.org")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("timeouts.feed", "60s")
	v.SetDefault("timeouts.index", "10s")
	v.SetDefault("timeouts.scorer", "30s")
	v.SetDefault("timeouts.messenger", "10s")
	v.SetDefault("scheduler.run_now_delay", "1m")
	v.SetDefault("scheduler.window_slack", "5m")
	v.SetDefault("cache.recent_ttl", "600s")

	// Secrets have no default but must be known keys so env overrides reach Unmarshal.
	for _, key := range []string{
		"state.password",
		"queue.project_id",
		"ml.api_key",
		"openai.api_key",
		"kakao.access_token",
		"telegram.bot_token",
		"telegram.chat_id",
	} {
		v.SetDefault(key, "")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Role {
	case RoleAll, RoleScheduler, RoleCrawler, RoleNotifier:
	default:
		return fmt.Errorf("role must be one of all, scheduler, crawler, notifier (got %q)", c.Role)
	}
	switch c.Index.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("index.driver must be sqlite or postgres (got %q)", c.Index.Driver)
	}
	if c.Index.DSN == "" {
		return fmt.Errorf("index.dsn is required")
	}
	switch c.State.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("state.driver must be memory or redis (got %q)", c.State.Driver)
	}
	switch c.Queue.Driver {
	case "none", "memory":
	case "pubsub":
		if c.Queue.ProjectID == "" {
			return fmt.Errorf("queue.project_id is required for pubsub")
		}
	default:
		return fmt.Errorf("queue.driver must be none, memory or pubsub (got %q)", c.Queue.Driver)
	}
	if c.Role != RoleAll && c.Queue.Driver != "pubsub" {
		return fmt.Errorf("role %s needs queue.driver=pubsub to reach other workers", c.Role)
	}
	if c.Role != RoleAll && c.State.Driver == "memory" {
		return fmt.Errorf("role %s needs a shared state store (state.driver=redis)", c.Role)
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be > 0")
	}
	if c.Timeouts.Feed <= 0 || c.Timeouts.Index <= 0 || c.Timeouts.Scorer <= 0 || c.Timeouts.Messenger <= 0 {
		return fmt.Errorf("timeouts must all be > 0")
	}
	return nil
}
