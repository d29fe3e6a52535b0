package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Search    SearchConfig
	Sources   SourcesConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Engine    EngineConfig
	Schedule  ScheduleConfig
	Retention RetentionConfig
	Store     StoreConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Drafter   DrafterConfig
	Webhook   WebhookConfig
	Mail      MailConfig
	Cache     CacheConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication on the review API.
type AuthConfig struct {
	Enabled bool // default: true
	APIKeys []string
}

// RateLimitConfig controls per-identity throttling of the review API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// SearchConfig is what every cycle searches for.
type SearchConfig struct {
	Keywords []string
	Location string // default: "United Kingdom"
}

// SourceConfig is the per-source switchboard.
type SourceConfig struct {
	Enabled           bool
	RequestsPerMinute int
	MaxPages          int
}

// SourcesConfig lists every scraper's settings, keyed by source key
// ("reed", "indeed", "totaljobs", "cwjobs", "studentcircus", "companies").
type SourcesConfig struct {
	Sources map[string]SourceConfig

	// CompaniesFile is a YAML list of career pages. Empty uses the built-in list.
	CompaniesFile string
}

// Get returns the settings for key, falling back to an enabled source with
// the global defaults when the key is unknown.
func (s SourcesConfig) Get(key string) SourceConfig {
	if c, ok := s.Sources[key]; ok {
		return c
	}
	return SourceConfig{Enabled: true, RequestsPerMinute: 10, MaxPages: 5}
}

// ScraperConfig controls how each source run behaves.
type ScraperConfig struct {
	FetchTimeout   time.Duration // default: 20s
	RetryAttempts  int           // default: 3
	RetryBaseDelay time.Duration // default: 2s
	RetryMaxDelay  time.Duration // default: 30s

	// JitterMin/JitterMax bound the courtesy delay added after each
	// rate limiter slot is granted.
	JitterMin time.Duration // default: 2s
	JitterMax time.Duration // default: 4s

	SourceDelay  time.Duration // default: 5s
	KeywordDelay time.Duration // default: 10s

	// CaptchaCooldown is how long a source sits out after a challenge.
	CaptchaCooldown time.Duration // default: 6h

	// RedFlags are terms that drop a listing at ingestion.
	RedFlags []string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Enabled launches Chromium for the browser engines. Off, only the
	// plain HTTP engine is used.
	Enabled bool // default: true

	Headless   bool   // default: true
	MaxPages   int    // default: 4
	Proxy      string // optional http(s) proxy for browser and HTTP engine
	NoSandbox  bool   // default: false
	BrowserBin string

	NavigationTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists resource types the page never loads.
	BlockedResourceTypes []string // default: ["Image", "Stylesheet", "Font", "Media"]
	BlockAds             bool     // default: true
}

// EngineConfig controls fetch engine escalation.
type EngineConfig struct {
	HostMemoryTTL time.Duration // default: 6h
}

// ScheduleConfig controls the periodic triggers.
type ScheduleConfig struct {
	Enabled bool          // default: true
	Every   time.Duration // default: 6h

	// SweepSpec is a cron expression for the standalone staleness sweep.
	SweepSpec  string // default: "0 3 * * *"
	RunOnStart bool   // default: false
}

// RetentionConfig holds the age thresholds.
type RetentionConfig struct {
	// MaxJobAgeDays drops stale listings at scrape time and expires
	// unconverted records in the sweeper.
	MaxJobAgeDays int // default: 7

	// RepostAfterDays is the gap after which a re-seen job counts as a repost.
	RepostAfterDays int // default: 30
}

// StoreConfig selects the record store. An empty DatabaseURL selects the
// in-memory store.
type StoreConfig struct {
	DatabaseURL string
}

// RedisConfig enables the shared cycle lock and source cooldowns.
type RedisConfig struct {
	URL     string
	LockTTL time.Duration // default: 4h
}

// LLMConfig selects the text generation backend.
type LLMConfig struct {
	// Provider is "anthropic", "openai" or "none". Default: "none".
	Provider string
	APIKey   string
	Model    string

	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string
	Timeout time.Duration // default: 60s
}

// DrafterConfig controls the document drafting stage.
type DrafterConfig struct {
	Enabled     bool   // default: true
	BatchSize   int    // default: 10
	ProfileFile string // YAML candidate profile; optional
}

// WebhookConfig controls operator notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// MailConfig controls the SMTP relay applications are sent through. An
// empty Host disables the apply endpoint.
type MailConfig struct {
	Host     string
	Port     int // default: 587
	Username string
	Password string
	From     string // default: Username
}

// CacheConfig controls the stats cache.
type CacheConfig struct {
	StatsTTL time.Duration // default: 30s
}

// DefaultKeywords is the search list used when JOBSCOUT_KEYWORDS is unset.
var DefaultKeywords = []string{
	"SOC Analyst",
	"Security Analyst",
	"Junior Penetration Tester",
	"Cybersecurity Analyst",
	"Security Operations Analyst",
	"Cyber Security Graduate",
	"Junior Security Engineer",
	"Threat Intelligence Analyst",
	"Vulnerability Analyst",
	"Cloud Security Analyst",
}

// DefaultRedFlags drop listings that are not real vacancies.
var DefaultRedFlags = []string{
	"unpaid",
	"commission only",
	"pay to apply",
	"training fee",
	"mlm",
}

// sourceKeys are the known scrapers in default priority order.
var sourceKeys = []string{"reed", "indeed", "totaljobs", "cwjobs", "studentcircus", "companies"}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("JOBSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("JOBSCOUT_PORT", 8080),
			Mode: envOr("JOBSCOUT_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("JOBSCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("JOBSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("JOBSCOUT_RATE_RPS", 5.0),
			Burst:             envIntOr("JOBSCOUT_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("JOBSCOUT_LOG_LEVEL", "info"),
			Format: envOr("JOBSCOUT_LOG_FORMAT", "json"),
		},
		Search: SearchConfig{
			Keywords: envSliceOr("JOBSCOUT_KEYWORDS", DefaultKeywords),
			Location: envOr("JOBSCOUT_LOCATION", "United Kingdom"),
		},
		Sources: loadSources(),
		Scraper: ScraperConfig{
			FetchTimeout:    envDurationOr("JOBSCOUT_FETCH_TIMEOUT", 20*time.Second),
			RetryAttempts:   envIntOr("JOBSCOUT_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:  envDurationOr("JOBSCOUT_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:   envDurationOr("JOBSCOUT_RETRY_MAX_DELAY", 30*time.Second),
			JitterMin:       envDurationOr("JOBSCOUT_JITTER_MIN", 2*time.Second),
			JitterMax:       envDurationOr("JOBSCOUT_JITTER_MAX", 4*time.Second),
			SourceDelay:     envDurationOr("JOBSCOUT_SOURCE_DELAY", 5*time.Second),
			KeywordDelay:    envDurationOr("JOBSCOUT_KEYWORD_DELAY", 10*time.Second),
			CaptchaCooldown: envDurationOr("JOBSCOUT_CAPTCHA_COOLDOWN", 6*time.Hour),
			RedFlags:        envSliceOr("JOBSCOUT_RED_FLAGS", DefaultRedFlags),
		},
		Browser: BrowserConfig{
			Enabled:           envBoolOr("JOBSCOUT_BROWSER_ENABLED", true),
			Headless:          envBoolOr("JOBSCOUT_HEADLESS", true),
			MaxPages:          envIntOr("JOBSCOUT_MAX_BROWSER_PAGES", 4),
			Proxy:             os.Getenv("JOBSCOUT_PROXY"),
			NoSandbox:         envBoolOr("JOBSCOUT_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("JOBSCOUT_BROWSER_BIN"),
			NavigationTimeout: envDurationOr("JOBSCOUT_NAV_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("JOBSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds: envBoolOr("JOBSCOUT_BLOCK_ADS", true),
		},
		Engine: EngineConfig{
			HostMemoryTTL: envDurationOr("JOBSCOUT_HOST_MEMORY_TTL", 6*time.Hour),
		},
		Schedule: ScheduleConfig{
			Enabled:    envBoolOr("JOBSCOUT_SCHEDULE_ENABLED", true),
			Every:      envDurationOr("JOBSCOUT_SCHEDULE_INTERVAL", 6*time.Hour),
			SweepSpec:  envOr("JOBSCOUT_SWEEP_SCHEDULE", "0 3 * * *"),
			RunOnStart: envBoolOr("JOBSCOUT_RUN_ON_START", false),
		},
		Retention: RetentionConfig{
			MaxJobAgeDays:   envIntOr("JOBSCOUT_MAX_JOB_AGE_DAYS", 7),
			RepostAfterDays: envIntOr("JOBSCOUT_REPOST_AFTER_DAYS", 30),
		},
		Store: StoreConfig{
			DatabaseURL: os.Getenv("JOBSCOUT_DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:     os.Getenv("JOBSCOUT_REDIS_URL"),
			LockTTL: envDurationOr("JOBSCOUT_CYCLE_LOCK_TTL", 4*time.Hour),
		},
		LLM: LLMConfig{
			Provider: envOr("JOBSCOUT_LLM_PROVIDER", "none"),
			APIKey:   os.Getenv("JOBSCOUT_LLM_API_KEY"),
			Model:    os.Getenv("JOBSCOUT_LLM_MODEL"),
			BaseURL:  envOr("JOBSCOUT_LLM_BASE_URL", "https://api.openai.com/v1"),
			Timeout:  envDurationOr("JOBSCOUT_LLM_TIMEOUT", 60*time.Second),
		},
		Drafter: DrafterConfig{
			Enabled:     envBoolOr("JOBSCOUT_DRAFTER_ENABLED", true),
			BatchSize:   envIntOr("JOBSCOUT_DRAFTER_BATCH", 10),
			ProfileFile: os.Getenv("JOBSCOUT_PROFILE_FILE"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("JOBSCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("JOBSCOUT_WEBHOOK_SECRET"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("JOBSCOUT_SMTP_HOST"),
			Port:     envIntOr("JOBSCOUT_SMTP_PORT", 587),
			Username: os.Getenv("JOBSCOUT_SMTP_USERNAME"),
			Password: os.Getenv("JOBSCOUT_SMTP_PASSWORD"),
			From:     envOr("JOBSCOUT_SMTP_FROM", os.Getenv("JOBSCOUT_SMTP_USERNAME")),
		},
		Cache: CacheConfig{
			StatsTTL: envDurationOr("JOBSCOUT_STATS_CACHE_TTL", 30*time.Second),
		},
	}
}

// SourceOrder returns the source keys in priority order. JOBSCOUT_SOURCE_ORDER
// overrides the default order; unknown keys are kept so a misspelling shows
// up in the registry's warning rather than silently vanishing.
func SourceOrder() []string {
	return envSliceOr("JOBSCOUT_SOURCE_ORDER", sourceKeys)
}

// loadSources reads JOBSCOUT_SOURCE_<KEY>_ENABLED, _RPM and _MAX_PAGES.
func loadSources() SourcesConfig {
	defaultRPM := envIntOr("JOBSCOUT_REQUESTS_PER_MINUTE", 10)
	defaultPages := envIntOr("JOBSCOUT_MAX_PAGES", 5)

	// Conservative limits for the boards that block aggressively.
	rpm := map[string]int{"indeed": 5, "studentcircus": 5, "companies": 5, "reed": 5, "totaljobs": 8}

	out := SourcesConfig{
		Sources:       make(map[string]SourceConfig, len(sourceKeys)),
		CompaniesFile: os.Getenv("JOBSCOUT_COMPANIES_FILE"),
	}
	for _, key := range sourceKeys {
		prefix := "JOBSCOUT_SOURCE_" + strings.ToUpper(key)
		def := defaultRPM
		if v, ok := rpm[key]; ok && os.Getenv("JOBSCOUT_REQUESTS_PER_MINUTE") == "" {
			def = v
		}
		out.Sources[key] = SourceConfig{
			Enabled:           envBoolOr(prefix+"_ENABLED", true),
			RequestsPerMinute: envIntOr(prefix+"_RPM", def),
			MaxPages:          envIntOr(prefix+"_MAX_PAGES", defaultPages),
		}
	}
	return out
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
