package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Postgres  PostgresConfig
	S3        S3Config
	Proxy     ProxyConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Output    OutputConfig
	DBPath    string
	LogPath   string
	LogMaxMB  int
	SitesDir  string
	Sites     map[string]*SiteConfig
}

type PostgresConfig struct {
	URL string
}

// S3Config describes an S3-compatible bucket for publishing output files.
// An empty Bucket disables uploads.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

type ProxyConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	Workers      int
	Headless     bool
	DelayMS      int
	NavTimeoutMS int
	StepTimeout  time.Duration
}

type OutputConfig struct {
	RawPath        string
	NormalizedPath string
	OutcomesPath   string
}

type SiteConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Handler        string   `yaml:"handler"`
	BaseURL        string   `yaml:"base_url"`
	FirmURLs       []string `yaml:"firm_urls"`
	RateLimitMS    int      `yaml:"rate_limit_ms"`
	InitialWaitMS  int      `yaml:"initial_wait_ms"`
	SettleMS       int      `yaml:"settle_ms"`
	PriceSelectors []string `yaml:"price_selectors"`
}

// InitialWait is how long a freshly loaded page is left alone before reading.
func (s *SiteConfig) InitialWait() time.Duration {
	if s.InitialWaitMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.InitialWaitMS) * time.Millisecond
}

// SettleDelay is the pause after activating a feature tab.
func (s *SiteConfig) SettleDelay() time.Duration {
	if s.SettleMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.SettleMS) * time.Millisecond
}

func (s *SiteConfig) RateLimit() time.Duration {
	return time.Duration(s.RateLimitMS) * time.Millisecond
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Prefix:          getEnv("S3_PREFIX", "listings"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			Workers:      getEnvInt("SCRAPE_WORKERS", 1),
			Headless:     getEnvBool("SCRAPE_HEADLESS", false),
			DelayMS:      getEnvInt("SCRAPE_DELAY_MS", 2000),
			NavTimeoutMS: getEnvInt("SCRAPE_NAV_TIMEOUT_MS", 60000),
			StepTimeout:  time.Duration(getEnvInt("SCRAPE_STEP_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Output: OutputConfig{
			RawPath:        getEnv("OUTPUT_RAW", "output/listings_raw.json"),
			NormalizedPath: getEnv("OUTPUT_NORMALIZED", "output/listings_normalized.json"),
			OutcomesPath:   getEnv("OUTPUT_OUTCOMES", "output/listings_outcomes.json"),
		},
		DBPath:   getEnv("DB_PATH", "listings.db"),
		LogPath:  getEnv("LOG_PATH", "daemon.log"),
		LogMaxMB: getEnvInt("LOG_MAX_MB", 2),
		SitesDir: getEnv("SITES_DIR", "config/sites"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		site, err := LoadSiteConfig(filepath.Join(c.SitesDir, entry.Name()))
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	return nil
}

func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, err
	}
	if site.Handler == "" {
		site.Handler = "browser"
	}
	return &site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
