package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/isaackogan/TikTokLive-Server/internal/room"
	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

const DefaultConfigPath = "config.yaml"

const PrettyLogFormat = "pretty"

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	API API `mapstructure:"api"`

	PrometheusExportAddress string `mapstructure:"prometheus_address"`

	// CleanupInterval is the period of the empty-room sweep.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	Webcast Webcast `mapstructure:"webcast"`

	AWS AWS `mapstructure:"aws"`
}

type API struct {
	ListeningAddress string        `mapstructure:"address"`
	ServerTimeout    time.Duration `mapstructure:"server_timeout"`
}

type Webcast struct {
	SignAPIURL string `mapstructure:"sign_api_url"`
	SignAPIKey string `mapstructure:"sign_api_key"`

	SessionID string `mapstructure:"session_id"`

	Proxies []string `mapstructure:"proxies"`
	MaxRPS  int      `mapstructure:"max_rps"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	// SessionsTableName is the DynamoDB table room session records are
	// written to. Recording is disabled when empty.
	SessionsTableName string `mapstructure:"sessions_table"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}

	gconfig.WithOptions(
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			}
		},
	)
	gconfig.AddDriver(gyaml.Driver)

	err := gconfig.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	cfg := new(Config)
	err = gconfig.BindStruct("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config binding failed")
	}

	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.API.ListeningAddress == "" {
		c.API.ListeningAddress = ":3005"
	}
	if c.API.ServerTimeout == 0 {
		c.API.ServerTimeout = 60 * time.Second
	}

	if c.PrometheusExportAddress == "" {
		c.PrometheusExportAddress = ":2112"
	}

	if c.CleanupInterval == 0 {
		c.CleanupInterval = room.DefaultCleanupInterval
	}

	if c.Webcast.SignAPIURL == "" {
		return errors.New("webcast.sign_api_url is required")
	}
	if c.Webcast.MaxRPS == 0 {
		c.Webcast.MaxRPS = webcast.DefaultMaxRPS
	}

	if c.AWS.SessionsTableName != "" && c.AWS.Region == "" {
		return errors.New("aws.region is required when aws.sessions_table is set")
	}

	return nil
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
