package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all configuration for the API and the CLI. Values come from an
// optional config.yaml and LEADBOT_* environment variables; nothing else
// reads the environment directly.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RingCentral RingCentralConfig `mapstructure:"ringcentral"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Enrich      EnrichConfig      `mapstructure:"enrich"`
	Log         LogConfig         `mapstructure:"log"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     int    `mapstructure:"port"`
	Timezone string `mapstructure:"timezone"`
}

type StoreConfig struct {
	// Driver is postgres or sqlite.
	Driver string `mapstructure:"driver"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// SSLMode accepts disable, require, verify-ca, verify-full.
	SSLMode string `mapstructure:"sslmode"`

	// Path is the sqlite database file.
	Path string `mapstructure:"path"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer"`
	JWTAudience     string        `mapstructure:"jwt_audience"`
	AccessTokenTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_ttl"`
}

type RingCentralConfig struct {
	ServerURL    string `mapstructure:"server_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	AccessToken  string `mapstructure:"access_token"`
	// FromNumber is the account number outbound texts are sent from.
	FromNumber string `mapstructure:"from_number"`

	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchDelay     time.Duration `mapstructure:"batch_delay"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInitial    time.Duration `mapstructure:"poll_initial"`
	PollMax        time.Duration `mapstructure:"poll_max"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

type EnrichConfig struct {
	VoicemailMinSeconds  int           `mapstructure:"voicemail_min_seconds"`
	VoicemailMaxSeconds  int           `mapstructure:"voicemail_max_seconds"`
	VoicemailVocabulary  []string      `mapstructure:"voicemail_vocabulary"`
	LongCallSeconds      int           `mapstructure:"long_call_seconds"`
	HistoryLimit         int           `mapstructure:"history_limit"`
	SMSFailureVocabulary []string      `mapstructure:"sms_failure_vocabulary"`
	TextFirstSources     []string      `mapstructure:"text_first_sources"`
	IndexCacheTTL        time.Duration `mapstructure:"index_cache_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.timezone", "America/New_York")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.user", "")
	v.SetDefault("store.password", "")
	v.SetDefault("store.name", "leadbot")
	v.SetDefault("store.sslmode", "")
	v.SetDefault("store.path", "leadbot.db")
	v.SetDefault("store.max_open_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.jwt_audience", "")
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("ringcentral.server_url", "https://platform.ringcentral.com")
	v.SetDefault("ringcentral.client_id", "")
	v.SetDefault("ringcentral.client_secret", "")
	v.SetDefault("ringcentral.refresh_token", "")
	v.SetDefault("ringcentral.access_token", "")
	v.SetDefault("ringcentral.from_number", "")
	// Heavy call-log group allows 10 requests a minute.
	v.SetDefault("ringcentral.requests_per_second", 0.16)
	v.SetDefault("ringcentral.burst", 3)
	v.SetDefault("ringcentral.timeout", 30*time.Second)

	v.SetDefault("sync.page_size", 250)
	v.SetDefault("sync.batch_size", 3)
	v.SetDefault("sync.batch_delay", 1500*time.Millisecond)
	v.SetDefault("sync.retry_attempts", 5)
	v.SetDefault("sync.initial_backoff", 2*time.Second)
	v.SetDefault("sync.max_backoff", 60*time.Second)
	v.SetDefault("sync.poll_initial", 2*time.Second)
	v.SetDefault("sync.poll_max", 15*time.Second)
	v.SetDefault("sync.poll_timeout", 5*time.Minute)
	v.SetDefault("sync.lock_ttl", 20*time.Minute)
	v.SetDefault("sync.run_timeout", 15*time.Minute)

	v.SetDefault("enrich.voicemail_min_seconds", 30)
	v.SetDefault("enrich.voicemail_max_seconds", 90)
	v.SetDefault("enrich.voicemail_vocabulary", []string{"voicemail", "vm", "left voicemail", "voice mail", "no answer", "busy", "not available"})
	v.SetDefault("enrich.long_call_seconds", 240)
	v.SetDefault("enrich.history_limit", 5)
	v.SetDefault("enrich.sms_failure_vocabulary", []string{"failed", "undelivered", "error", "rejected"})
	v.SetDefault("enrich.text_first_sources", []string{"web", "online", "form"})
	v.SetDefault("enrich.index_cache_ttl", 60*time.Second)

	v.SetDefault("log.level", "info")
}

// Load reads configuration. file, when set, must exist; otherwise an
// optional config.yaml in the working directory is used.
func Load(file string) (Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEADBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, eris.Wrap(err, "config: read file")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, eris.Wrap(err, "config: unmarshal")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("app.env must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port must be a valid port, got %d", c.App.Port))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil || c.App.Timezone == "" {
		errs = append(errs, fmt.Errorf("app.timezone must be an IANA zone, got %q", c.App.Timezone))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case "postgres":
		if c.Store.Host == "" {
			errs = append(errs, errors.New("store.host is required for postgres"))
		}
		if c.Store.Port <= 0 || c.Store.Port > 65535 {
			errs = append(errs, fmt.Errorf("store.port must be a valid port, got %d", c.Store.Port))
		}
		if c.Store.User == "" {
			errs = append(errs, errors.New("store.user is required for postgres"))
		}
		if c.Store.Name == "" {
			errs = append(errs, errors.New("store.name is required for postgres"))
		}
		if c.Store.SSLMode == "" && c.IsProduction() {
			errs = append(errs, errors.New("store.sslmode is required in production"))
		}
		if c.Store.SSLMode != "" && !isValidSSLMode(c.Store.SSLMode) {
			errs = append(errs, fmt.Errorf("store.sslmode must be one of disable, require, verify-ca, verify-full, got %q", c.Store.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	if c.Redis.Enabled {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("redis.host is required when redis is enabled"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("redis.port must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("auth.jwt_issuer is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("auth.jwt_audience is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("auth.refresh_ttl must be greater than auth.access_ttl"))
	}

	if u, err := url.Parse(c.RingCentral.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ringcentral.server_url must be an absolute URL, got %q", c.RingCentral.ServerURL))
	}
	if c.RingCentral.RefreshToken != "" && (c.RingCentral.ClientID == "" || c.RingCentral.ClientSecret == "") {
		errs = append(errs, errors.New("ringcentral.client_id and ringcentral.client_secret are required with a refresh token"))
	}
	if c.RingCentral.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("ringcentral.requests_per_second must not be negative"))
	}

	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("sync.page_size must be in 1..1000, got %d", c.Sync.PageSize))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize))
	}
	if c.Sync.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("sync.retry_attempts must be positive, got %d", c.Sync.RetryAttempts))
	}
	if c.Sync.MaxBackoff < c.Sync.InitialBackoff {
		errs = append(errs, errors.New("sync.max_backoff must be at least sync.initial_backoff"))
	}
	if c.Sync.PollMax < c.Sync.PollInitial {
		errs = append(errs, errors.New("sync.poll_max must be at least sync.poll_initial"))
	}
	if c.Sync.PollTimeout <= 0 {
		errs = append(errs, errors.New("sync.poll_timeout must be positive"))
	}

	if c.Enrich.VoicemailMinSeconds < 0 || c.Enrich.VoicemailMaxSeconds < c.Enrich.VoicemailMinSeconds {
		errs = append(errs, fmt.Errorf("enrich voicemail window %d..%d is invalid", c.Enrich.VoicemailMinSeconds, c.Enrich.VoicemailMaxSeconds))
	}
	if c.Enrich.LongCallSeconds <= 0 {
		errs = append(errs, errors.New("enrich.long_call_seconds must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Location returns the timezone day buckets are cut in. Validate has
// already checked it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DriverName maps the store driver to the database/sql driver name.
func (c Config) DriverName() string {
	if c.Store.Driver == "postgres" {
		return "pgx"
	}
	return "sqlite"
}

// DSN returns the data source for the configured driver. It contains
// secrets; never log it.
func (c Config) DSN() string {
	if c.Store.Driver != "postgres" {
		return c.Store.Path
	}
	sslmode := c.Store.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Store.Host,
		c.Store.Port,
		c.Store.User,
		c.Store.Password,
		c.Store.Name,
		sslmode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
