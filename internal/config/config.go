package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Site is a single news sitemap to harvest.
type Site struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Scraper holds configuration for the sitemap -> Elasticsearch pipeline.
type Scraper struct {
	Common
	Sites []Site

	RedisURL          string
	DedupeBackend     string
	DedupeTTL         time.Duration
	DedupeKeyPrefix   string
	DedupeKeyStrategy string
	DedupeMaxFailures int
	DedupeFailureTTL  time.Duration
	DedupeQuarantine  time.Duration
	DedupeMemoryLimit int
	UserAgent         string
	Workers           int
	FetchTimeout      time.Duration
	ExtractTimeout    time.Duration
	SummarizeTimeout  time.Duration
	IndexTimeout      time.Duration
	ReportTimeout     time.Duration
	StoreTimeout      time.Duration
	Summarizer        string
	SummarySentences  int
	OpenAIAPIKey      string
	OpenAIModel       string
	AnthropicAPIKey   string
	AnthropicModel    string
	KafkaBrokers      []string
	KafkaFailureTopic string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// DefaultSites are harvested when neither SITES nor SITES_FILE is set.
var DefaultSites = []Site{
	{Name: "dailymail", URL: "http://www.dailymail.co.uk/newssitemap1.xml"},
	{Name: "independent", URL: "http://www.independent.co.uk/googlenewssitemap.jsp"},
	{Name: "standard", URL: "http://www.standard.co.uk/googlenewssitemap.jsp"},
	{Name: "telegraph", URL: "http://www.telegraph.co.uk/sitemaps/news/append/news_app1.xml"},
	{Name: "guardian", URL: "http://www.theguardian.com/newssitemap.xml"},
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://localhost:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "nscrpr"),
	}
}

// LoadScraper builds a Scraper config from environment variables.
func LoadScraper() (*Scraper, error) {
	sites, err := loadSites()
	if err != nil {
		return nil, err
	}

	c := &Scraper{
		Common:            loadCommon(),
		Sites:             sites,
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DedupeBackend:     strings.ToLower(getEnv("DEDUPE_BACKEND", "redis")),
		DedupeTTL:         getDuration("DEDUPE_TTL", "48h"),
		DedupeKeyPrefix:   os.Getenv("DEDUPE_KEY_PREFIX"),
		DedupeKeyStrategy: strings.ToLower(getEnv("DEDUPE_KEY_STRATEGY", "location")),
		DedupeMaxFailures: getInt("DEDUPE_MAX_FAILURES", 0),
		DedupeFailureTTL:  getDuration("DEDUPE_FAILURE_WINDOW", "48h"),
		DedupeQuarantine:  getDuration("DEDUPE_QUARANTINE_TTL", "168h"),
		DedupeMemoryLimit: getInt("DEDUPE_MEMORY_CAPACITY", 100000),
		UserAgent:         getEnv("SCRAPER_USER_AGENT", "nscrpr"),
		Workers:           getInt("SCRAPER_WORKERS", 1),
		FetchTimeout:      getDuration("SCRAPER_FETCH_TIMEOUT", "30s"),
		ExtractTimeout:    getDuration("SCRAPER_EXTRACT_TIMEOUT", "30s"),
		SummarizeTimeout:  getDuration("SCRAPER_SUMMARIZE_TIMEOUT", "60s"),
		IndexTimeout:      getDuration("SCRAPER_INDEX_TIMEOUT", "10s"),
		ReportTimeout:     getDuration("SCRAPER_REPORT_TIMEOUT", "10s"),
		StoreTimeout:      getDuration("SCRAPER_STORE_TIMEOUT", "5s"),
		Summarizer:        strings.ToLower(getEnv("SUMMARIZER", "local")),
		SummarySentences:  getInt("SUMMARY_SENTENCES", 5),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-haiku-4-5"),
		KafkaBrokers:      splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaFailureTopic: getEnv("KAFKA_FAILURE_TOPIC", "nscrpr_failures"),
	}

	if len(c.Sites) == 0 {
		return nil, fmt.Errorf("at least one site must be configured")
	}
	if c.DedupeTTL <= 0 {
		return nil, fmt.Errorf("DEDUPE_TTL must be positive")
	}
	switch c.DedupeBackend {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("DEDUPE_BACKEND must be redis or memory, got %q", c.DedupeBackend)
	}
	switch c.DedupeKeyStrategy {
	case "location", "location_date":
	default:
		return nil, fmt.Errorf("DEDUPE_KEY_STRATEGY must be location or location_date, got %q", c.DedupeKeyStrategy)
	}
	if c.DedupeMaxFailures < 0 {
		return nil, fmt.Errorf("DEDUPE_MAX_FAILURES cannot be negative")
	}
	if c.Workers <= 0 {
		return nil, fmt.Errorf("SCRAPER_WORKERS must be positive")
	}
	if c.SummarySentences <= 0 {
		return nil, fmt.Errorf("SUMMARY_SENTENCES must be positive")
	}
	switch c.Summarizer {
	case "local":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when SUMMARIZER=openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when SUMMARIZER=anthropic")
		}
	default:
		return nil, fmt.Errorf("SUMMARIZER must be local, openai or anthropic, got %q", c.Summarizer)
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"SCRAPER_FETCH_TIMEOUT", c.FetchTimeout},
		{"SCRAPER_EXTRACT_TIMEOUT", c.ExtractTimeout},
		{"SCRAPER_SUMMARIZE_TIMEOUT", c.SummarizeTimeout},
		{"SCRAPER_INDEX_TIMEOUT", c.IndexTimeout},
		{"SCRAPER_REPORT_TIMEOUT", c.ReportTimeout},
		{"SCRAPER_STORE_TIMEOUT", c.StoreTimeout},
	} {
		if d.v <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.name)
		}
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      loadCommon(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// loadSites resolves the site list: SITES_FILE wins over SITES, which wins
// over DefaultSites.
func loadSites() ([]Site, error) {
	if path := os.Getenv("SITES_FILE"); path != "" {
		return ReadSitesFile(path)
	}

	if raw := os.Getenv("SITES"); raw != "" {
		urls := splitAndTrim(raw)
		sites := make([]Site, 0, len(urls))
		for _, u := range urls {
			sites = append(sites, Site{Name: u, URL: u})
		}
		return sites, nil
	}

	out := make([]Site, len(DefaultSites))
	copy(out, DefaultSites)
	return out, nil
}

// ReadSitesFile parses a YAML document of the form
//
//	sites:
//	  - name: guardian
//	    url: https://www.theguardian.com/newssitemap.xml
func ReadSitesFile(path string) ([]Site, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	var doc struct {
		Sites []Site `yaml:"sites"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse sites file %s: %w", path, err)
	}

	sites := make([]Site, 0, len(doc.Sites))
	for i, s := range doc.Sites {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			return nil, fmt.Errorf("sites file %s: entry %d has no url", path, i)
		}
		if s.Name == "" {
			s.Name = s.URL
		}
		sites = append(sites, s)
	}
	return sites, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
