package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidQueueSize = errors.New("queue size must be positive")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
)

type Config struct {
	Host      string `envconfig:"CHAT_HOST"`
	Port      int    `envconfig:"CHAT_PORT" default:"8080"`
	WsAddr    string `envconfig:"CHAT_WS_ADDR"`    // 为空则不开启websocket
	AdminAddr string `envconfig:"CHAT_ADMIN_ADDR"` // 为空则不开启管理接口
	QueueSize int    `envconfig:"CHAT_QUEUE_SIZE" default:"256"`
	LogLevel  string `envconfig:"CHAT_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"CHAT_LOG_FORMAT" default:"text"`
	// client side
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w, got %d", ErrInvalidPort, c.Port)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidQueueSize, c.QueueSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w, got %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}

// Logger builds the process logger. Call Validate first.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
