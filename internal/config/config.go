package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Cron    CronConfig    `mapstructure:"cron"`
	Bondora BondoraConfig `mapstructure:"bondora"`
	Invest  InvestConfig  `mapstructure:"invest"`
	Scorer  ScorerConfig  `mapstructure:"scorer"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig is optional. An empty DSN runs without the journal and kill switch.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig backs the cross-process pass lock. An empty Addr falls back to
// an in-process lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockKey  string        `mapstructure:"lock_key"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Invest  string `mapstructure:"invest"`
}

type BondoraConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// InvestConfig carries the money limits as strings so they reach decimal
// without a float round trip.
type InvestConfig struct {
	DryRun              bool     `mapstructure:"dry_run"`
	MinInvestment       string   `mapstructure:"min_investment"`
	MaxInvestment       string   `mapstructure:"max_investment"`
	Increment           string   `mapstructure:"increment"`
	Mode                string   `mapstructure:"mode"`
	ConfidenceThreshold *float64 `mapstructure:"confidence_threshold"`
	MinInterest         *float64 `mapstructure:"min_interest"`
	ProfitThreshold     *float64 `mapstructure:"profit_threshold"`

	// PassTimeout bounds a whole pass. Callers cannot cancel a pass earlier.
	PassTimeout time.Duration `mapstructure:"pass_timeout"`
}

type ScorerConfig struct {
	Kind       string        `mapstructure:"kind"`
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TaxRate    float64       `mapstructure:"tax_rate"`
	DefaultLGD float64       `mapstructure:"default_lgd"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

const (
	ScorerHeuristic = "heuristic"
	ScorerRemote    = "remote"
)

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_key", "autoinvestor:pass")
	v.SetDefault("redis.lock_ttl", "5m")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.invest", "@every 15m")
	v.SetDefault("bondora.base_url", "https://api.bondora.com/api/v1")
	v.SetDefault("bondora.token", "")
	v.SetDefault("bondora.timeout", "30s")

	// Dry run stays on until an operator turns it off explicitly.
	v.SetDefault("invest.dry_run", true)
	v.SetDefault("invest.pass_timeout", "4m")
	v.SetDefault("invest.min_investment", "5")
	v.SetDefault("invest.max_investment", "5")
	v.SetDefault("invest.increment", "0")
	v.SetDefault("invest.mode", string(bidder.ModeConfidence))
	// Optional thresholds have no default; bind them so env-only runs see them.
	_ = v.BindEnv("invest.confidence_threshold")
	_ = v.BindEnv("invest.min_interest")
	_ = v.BindEnv("invest.profit_threshold")

	v.SetDefault("scorer.kind", ScorerHeuristic)
	v.SetDefault("scorer.url", "")
	v.SetDefault("scorer.timeout", "30s")
	v.SetDefault("scorer.tax_rate", 0.2)
	v.SetDefault("scorer.default_lgd", 1.0)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "bondora-auto-investor")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations a pass could not run with. It is called
// once at startup so a bad deploy fails before the first pass.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.ToBidderConfig(); err != nil {
		errs = append(errs, err)
	}
	switch c.Scorer.Kind {
	case ScorerHeuristic:
		if c.Scorer.TaxRate < 0 || c.Scorer.TaxRate >= 1 {
			errs = append(errs, fmt.Errorf("scorer.tax_rate must be in [0,1), got %v", c.Scorer.TaxRate))
		}
		if c.Scorer.DefaultLGD < 0 || c.Scorer.DefaultLGD > 1 {
			errs = append(errs, fmt.Errorf("scorer.default_lgd must be in [0,1], got %v", c.Scorer.DefaultLGD))
		}
	case ScorerRemote:
		if strings.TrimSpace(c.Scorer.URL) == "" {
			errs = append(errs, errors.New("scorer.url is required for the remote scorer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scorer.kind %q", c.Scorer.Kind))
	}
	if c.Cron.Enabled {
		if _, err := cron.ParseStandard(c.Cron.Invest); err != nil {
			errs = append(errs, fmt.Errorf("cron.invest: %w", err))
		}
	}
	if strings.TrimSpace(c.Bondora.BaseURL) == "" {
		errs = append(errs, errors.New("bondora.base_url is required"))
	}
	errs = append(errs, c.validateTimeouts()...)
	return errors.Join(errs...)
}

// WorstCasePass is the longest a pass can take before its own calls time
// out: balance, auctions and submit against the marketplace plus one scorer
// call.
func (c Config) WorstCasePass() time.Duration {
	d := 3 * c.Bondora.Timeout
	if c.Scorer.Kind == ScorerRemote {
		d += c.Scorer.Timeout
	}
	return d
}

// validateTimeouts keeps the pass deadline behind the per-call timeouts and
// the Redis lease ahead of the pass deadline, so a lease never lapses while
// its holder can still submit.
func (c Config) validateTimeouts() []error {
	var errs []error
	if c.Bondora.Timeout <= 0 {
		errs = append(errs, errors.New("bondora.timeout must be positive"))
	}
	if c.Scorer.Kind == ScorerRemote && c.Scorer.Timeout <= 0 {
		errs = append(errs, errors.New("scorer.timeout must be positive"))
	}
	if c.Invest.PassTimeout <= 0 {
		errs = append(errs, errors.New("invest.pass_timeout must be positive"))
		return errs
	}
	if worst := c.WorstCasePass(); c.Invest.PassTimeout < worst {
		errs = append(errs, fmt.Errorf("invest.pass_timeout %s is shorter than the worst-case pass %s", c.Invest.PassTimeout, worst))
	}
	if strings.TrimSpace(c.Redis.Addr) != "" && c.Redis.LockTTL <= c.Invest.PassTimeout {
		errs = append(errs, fmt.Errorf("redis.lock_ttl %s must exceed invest.pass_timeout %s", c.Redis.LockTTL, c.Invest.PassTimeout))
	}
	return errs
}

// ToBidderConfig converts the invest section into engine limits and thresholds.
func (c Config) ToBidderConfig() (bidder.Config, error) {
	min, err := parseAmount("invest.min_investment", c.Invest.MinInvestment)
	if err != nil {
		return bidder.Config{}, err
	}
	max, err := parseAmount("invest.max_investment", c.Invest.MaxInvestment)
	if err != nil {
		return bidder.Config{}, err
	}
	inc := decimal.Zero
	if strings.TrimSpace(c.Invest.Increment) != "" {
		if inc, err = parseAmount("invest.increment", c.Invest.Increment); err != nil {
			return bidder.Config{}, err
		}
	}
	out := bidder.Config{
		Thresholds: bidder.Thresholds{
			Mode:                bidder.Mode(strings.ToLower(strings.TrimSpace(c.Invest.Mode))),
			ConfidenceThreshold: c.Invest.ConfidenceThreshold,
			MinInterest:         c.Invest.MinInterest,
			ProfitThreshold:     c.Invest.ProfitThreshold,
		},
		Limits: bidder.Limits{MinInvestment: min, MaxInvestment: max, Increment: inc},
	}
	if err := out.Validate(); err != nil {
		return bidder.Config{}, err
	}
	return out, nil
}

func parseAmount(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q: %v", bidder.ErrInvalidConfig, key, raw, err)
	}
	return d, nil
}
