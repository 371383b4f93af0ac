package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Socket     SocketConfig     `yaml:"socket"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig identifies the MySQL server to replicate from. It is fixed
// for the lifetime of a connector instance.
type SourceConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  uint8  `yaml:"charset"`
}

// SocketConfig holds the TCP-level options applied before the handshake.
type SocketConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	ReceiveBufferSize int           `yaml:"receive_buffer_size"`
	SendBufferSize    int           `yaml:"send_buffer_size"`
	KeepAlive         bool          `yaml:"keep_alive"`
	NoDelay           bool          `yaml:"no_delay"`
}

type APIConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	MetricsPath       string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration defaults: utf8 charset, 30s socket
// timeout, 16 KiB buffers, keep-alive and no-delay on.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Host:    "127.0.0.1",
			Port:    3306,
			Charset: 33, // utf8_general_ci
		},
		Socket: SocketConfig{
			Timeout:           30 * time.Second,
			ReceiveBufferSize: 16 * 1024,
			SendBufferSize:    16 * 1024,
			KeepAlive:         true,
			NoDelay:           true,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: true,
			MetricsPath:       "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, applied on top of the defaults.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Source.Host == "" {
		return fmt.Errorf("source.host is required")
	}
	if c.Source.Port <= 0 || c.Source.Port > 65535 {
		return fmt.Errorf("source.port %d is out of range", c.Source.Port)
	}
	if c.Source.User == "" {
		return fmt.Errorf("source.user is required")
	}
	if c.Socket.Timeout < 0 {
		return fmt.Errorf("socket.timeout must not be negative")
	}
	return nil
}

// Address returns the host:port dial target.
func (s *SourceConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ParseDSN builds a source config from a go-sql-driver DSN string, e.g.
// "repl:secret@tcp(127.0.0.1:3306)/orders". Charset keeps its default.
func ParseDSN(dsn string) (*SourceConfig, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	src := Default().Source
	src.User = parsed.User
	src.Password = parsed.Passwd
	src.Database = parsed.DBName

	if parsed.Addr != "" {
		host, port, err := net.SplitHostPort(parsed.Addr)
		if err != nil {
			// Bare host without a port.
			src.Host = parsed.Addr
		} else {
			src.Host = host
			if src.Port, err = strconv.Atoi(port); err != nil {
				return nil, fmt.Errorf("invalid port in DSN: %w", err)
			}
		}
	}
	return &src, nil
}
