package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	DBDriver          string        `env:"DB_DRIVER,default=sqlite"`
	DBPath            string        `env:"DB_PATH,default=itemwatcher.db"`
	DBHost            string        `env:"DB_HOST,default=localhost"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME,default=itemwatcher"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	CheckInterval       time.Duration `env:"CHECK_INTERVAL,default=6h"`
	MaxConcurrentChecks int           `env:"MAX_CONCURRENT_CHECKS,default=4"`
	ScrapeTimeout       time.Duration `env:"SCRAPE_TIMEOUT,default=60s"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT,default=15s"`

	ScraperUserAgent   string  `env:"SCRAPER_USER_AGENT"`
	ScraperRatePerHost float64 `env:"SCRAPER_RATE_PER_HOST,default=0.2"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM_EMAIL"`
	AlertToEmail string `env:"ALERT_TO_EMAIL"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID      int64  `env:"TELEGRAM_CHAT_ID"`
	TelegramPollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT,default=60"`

	HTTPAddr  string `env:"HTTP_ADDR,default=:8000"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EmailEnabled reports whether enough SMTP settings are present to send alerts.
func (c Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.AlertToEmail != ""
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}
