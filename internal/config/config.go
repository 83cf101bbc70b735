// Package config provides functionality for managing configuration options
// for the application using a .env file, a JSON file, command-line flags and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// SecretKey signs and verifies bearer tokens (HS256).
	SecretKey string `json:"secret_key"`

	// TokenTTL is the lifetime of issued tokens. Zero issues non-expiring tokens.
	TokenTTL time.Duration `json:"-"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// CORSOrigins lists the origins allowed to call the API with credentials.
	CORSOrigins []string `json:"cors_origins"`

	// WeChat mini-program credentials and the code exchange endpoint.
	WeChatAppID     string `json:"wechat_app_id"`
	WeChatAppSecret string `json:"wechat_app_secret"`
	WeChatEndpoint  string `json:"wechat_endpoint"`

	// ScraperBaseURL is the resthome directory site.
	ScraperBaseURL string `json:"scraper_base_url"`
	// ScraperContact is announced to the scraped site with every request.
	ScraperContact string `json:"scraper_contact"`
	// SearchURL is the site search endpoint; page and query are appended.
	SearchURL string `json:"search_url"`
	// HomeImageURL is the placeholder image served for home cards.
	HomeImageURL string `json:"home_image_url"`
	// UpstreamTimeout bounds every outbound HTTP call.
	UpstreamTimeout time.Duration `json:"-"`

	// Cache lifetimes.
	OpenIDCacheTTL time.Duration `json:"-"`
	ImageCacheTTL  time.Duration `json:"-"`
	PairingCodeTTL time.Duration `json:"-"`
}

// Duration decodes either a Go duration string ("90s") or integer nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// fileOptions is the JSON shape of the config file.
type fileOptions struct {
	*Options
	TokenTTL        *Duration `json:"token_ttl"`
	UpstreamTimeout *Duration `json:"upstream_timeout"`
	OpenIDCacheTTL  *Duration `json:"openid_cache_ttl"`
	ImageCacheTTL   *Duration `json:"image_cache_ttl"`
	PairingCodeTTL  *Duration `json:"pairing_code_ttl"`
}

// Defaults returns the development defaults.
func Defaults() *Options {
	return &Options{
		Addr:            "localhost:8080",
		Config:          "config.json",
		SecretKey:       "change-me",
		TokenTTL:        30 * 24 * time.Hour,
		LogLevel:        "info",
		CORSOrigins:     []string{"*"},
		WeChatEndpoint:  "https://api.weixin.qq.com/sns/jscode2session",
		ScraperBaseURL:  "https://www.yanglao.com.cn/",
		SearchURL:       "http://zhannei.baidu.com/cse/search?s=17154056689837219680",
		HomeImageURL:    "https://place.dog/800/400",
		UpstreamTimeout: 15 * time.Second,
		OpenIDCacheTTL:  2 * time.Minute,
		ImageCacheTTL:   10 * time.Minute,
		PairingCodeTTL:  5 * time.Minute,
	}
}

// Parse loads configuration from .env, the config file, command-line flags and
// the environment, later sources overriding earlier ones. It exits the process
// on an unreadable or invalid configuration.
func Parse() *Options {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("error while loading .env: %v", err)
	}

	options, err := parse(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("error while parsing configuration: %v", err)
	}
	return options
}

func parse(args []string, getenv func(string) string) (*Options, error) {
	options := Defaults()

	// The config path has to be known before the file can be layered under the flags.
	pre := pflag.NewFlagSet("config", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	pre.StringVarP(&options.Config, "config", "c", options.Config, "path to config file")
	_ = pre.Parse(args)

	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if err := loadFile(options); err != nil {
		return nil, err
	}

	flags := newFlagSet(options)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	applyEnv(options, getenv)
	return options, nil
}

func newFlagSet(options *Options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("guardpine", pflag.ContinueOnError)
	flags.StringVarP(&options.Addr, "addr", "a", options.Addr, "run on ip:port server")
	flags.StringVarP(&options.DatabaseDSN, "dsn", "d", options.DatabaseDSN, "db address")
	flags.StringVarP(&options.Config, "config", "c", options.Config, "path to config file")
	flags.StringVarP(&options.SecretKey, "secret", "s", options.SecretKey, "token signing secret")
	flags.DurationVar(&options.TokenTTL, "token-ttl", options.TokenTTL, "token lifetime, 0 for non-expiring")
	flags.StringVar(&options.TLSCert, "tls-cert", options.TLSCert, "path to TLS certificate")
	flags.StringVar(&options.TLSKey, "tls-key", options.TLSKey, "path to TLS key")
	flags.StringVarP(&options.LogLevel, "log-level", "l", options.LogLevel, "log level")
	flags.StringSliceVar(&options.CORSOrigins, "cors-origin", options.CORSOrigins, "allowed CORS origins")
	flags.StringVar(&options.WeChatAppID, "wechat-app-id", options.WeChatAppID, "WeChat mini-program app id")
	flags.StringVar(&options.WeChatAppSecret, "wechat-app-secret", options.WeChatAppSecret, "WeChat mini-program app secret")
	flags.StringVar(&options.WeChatEndpoint, "wechat-endpoint", options.WeChatEndpoint, "WeChat code2session endpoint")
	flags.StringVar(&options.ScraperBaseURL, "scraper-base-url", options.ScraperBaseURL, "resthome directory site")
	flags.StringVar(&options.ScraperContact, "scraper-contact", options.ScraperContact, "contact sent to the scraped site")
	flags.StringVar(&options.SearchURL, "search-url", options.SearchURL, "site search endpoint")
	flags.StringVar(&options.HomeImageURL, "home-image-url", options.HomeImageURL, "home card image")
	flags.DurationVar(&options.UpstreamTimeout, "upstream-timeout", options.UpstreamTimeout, "outbound request timeout")
	flags.DurationVar(&options.OpenIDCacheTTL, "openid-cache-ttl", options.OpenIDCacheTTL, "openid cache lifetime")
	flags.DurationVar(&options.ImageCacheTTL, "image-cache-ttl", options.ImageCacheTTL, "image proxy cache lifetime")
	flags.DurationVar(&options.PairingCodeTTL, "pairing-code-ttl", options.PairingCodeTTL, "pairing code lifetime")
	return flags
}

func loadFile(options *Options) error {
	if options.Config == "" {
		return nil
	}
	data, err := os.ReadFile(options.Config)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	file := fileOptions{Options: options}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for _, d := range []struct {
		src *Duration
		dst *time.Duration
	}{
		{file.TokenTTL, &options.TokenTTL},
		{file.UpstreamTimeout, &options.UpstreamTimeout},
		{file.OpenIDCacheTTL, &options.OpenIDCacheTTL},
		{file.ImageCacheTTL, &options.ImageCacheTTL},
		{file.PairingCodeTTL, &options.PairingCodeTTL},
	} {
		if d.src != nil {
			*d.dst = d.src.Duration
		}
	}
	return nil
}

func applyEnv(options *Options, getenv func(string) string) {
	for _, e := range []struct {
		key string
		dst *string
	}{
		{"SERVER_ADDRESS", &options.Addr},
		{"DATABASE_DSN", &options.DatabaseDSN},
		{"SECRET_KEY", &options.SecretKey},
		{"LOG_LEVEL", &options.LogLevel},
		{"WECHAT_APP_ID", &options.WeChatAppID},
		{"WECHAT_APP_SECRET", &options.WeChatAppSecret},
	} {
		if v := getenv(e.key); v != "" {
			*e.dst = v
		}
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				origins = append(origins, o)
			}
		}
		options.CORSOrigins = origins
	}
}
