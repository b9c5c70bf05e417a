package config

import (
	"time"

	"github.com/cenownik/pricewatch/internal/obs"
	pginfra "github.com/cenownik/pricewatch/internal/repository/postgres"
)

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
}

func (l Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: l.Level, Pretty: l.Pretty, App: "pricewatch", Env: l.Env}
}

type OTEL struct {
	Enable      bool    `mapstructure:"enable"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Endpoint    string  `mapstructure:"otlp_endpoint"`
}

func (o OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.Endpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

type Fetch struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
	BrowserTimeout  time.Duration `mapstructure:"browser_timeout"`
}

type Scrape struct {
	DefaultCron  string        `mapstructure:"default_cron"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	ListingDelay time.Duration `mapstructure:"listing_delay"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
	Fetch        Fetch         `mapstructure:"fetch"`
}

type OAuth struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	User         string `mapstructure:"user"`
}

type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type Email struct {
	OAuth      OAuth         `mapstructure:"oauth"`
	SMTP       SMTP          `mapstructure:"smtp"`
	From       string        `mapstructure:"from"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Discord struct {
	Username      string        `mapstructure:"username"`
	AvatarURL     string        `mapstructure:"avatar_url"`
	RateLimitWait time.Duration `mapstructure:"rate_limit_wait"`
}

type Notify struct {
	Attempts    int           `mapstructure:"attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Discord     Discord       `mapstructure:"discord"`
	Email       Email         `mapstructure:"email"`
}

type Server struct {
	ControlAddr string `mapstructure:"control_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	Scrape Scrape         `mapstructure:"scrape"`
	Notify Notify         `mapstructure:"notify"`
	Server Server         `mapstructure:"server"`
	OTEL   OTEL           `mapstructure:"otel"`
	Log    Log            `mapstructure:"log"`
}
