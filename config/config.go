// Package config reads client settings from flags, environment and .env files.
//
// Precedence is the usual viper one: explicit flag, then SMP2_* environment variable
// (".env" and ".env.local" are loaded into the environment first), then flag default.
package config

import (
	"errors"
	"fmt"
	"smp2client/client"
	"smp2client/loadbalance"
	"smp2client/transport"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	// Wrap is the number of characters to wrap the help text at
	Wrap int = 50

	EnvPrefix = "smp2"
)

type Config struct {
	Host          string
	Port          int
	LogLevel      string
	RateLimit     float64 // calls per second, 0 disables limiting
	RateBurst     int
	EtcdEndpoints []string // empty means dial Host:Port directly
	Service       string
	Balancer      string
	Metrics       bool
}

// Endpoint returns the direct ZeroMQ endpoint for Host and Port.
func (c *Config) Endpoint() string {
	return transport.Endpoint(c.Host, c.Port)
}

// UseDiscovery reports whether the simulator address is looked up in etcd.
func (c *Config) UseDiscovery() bool {
	return len(c.EtcdEndpoints) > 0
}

func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log-level %q", c.LogLevel))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate-limit must not be negative, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate-burst must be at least 1, got %d", c.RateBurst))
	}
	if c.UseDiscovery() {
		if c.Service == "" {
			errs = append(errs, errors.New("service must not be empty"))
		}
		if _, err := loadbalance.New(c.Balancer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var lines []string
	var line strings.Builder
	width := 0

	for _, word := range strings.Fields(text) {
		if width > 0 && width+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteString(" ")
			width++
		}
		line.WriteString(word)
		width += len(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// SetupFlags adds the connection flags to a command
func SetupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("host", client.DefaultHost, WrapString("Host name of the simulator"))
	flags.Int("port", client.DefaultPort, WrapString("Port of the simulator's JSON-RPC socket"))
	flags.String("log-level", "info", WrapString("Log level (debug, info, warn, error)"))
	flags.Float64("rate-limit", 0, WrapString("Maximum calls per second, 0 disables limiting"))
	flags.Int("rate-burst", 1, WrapString("Calls allowed in a burst when rate limiting"))
	flags.String("etcd-endpoints", "", WrapString("Comma-separated etcd endpoints. When set, the simulator address is looked up in etcd instead of using host and port"))
	flags.String("service", client.DefaultService, WrapString("Service name to look up in etcd"))
	flags.String("balancer", "roundrobin", WrapString("How to pick among registered simulators (roundrobin, weighted)"))
	flags.Bool("metrics", false, WrapString("Write call metrics to stderr in Prometheus text format on exit"))
}

// Init loads env files and prepares viper for SMP2_* environment variables
func Init(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// BindFlags binds a command's flags to viper
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	return v.BindPFlags(cmd.Flags())
}

// FromViper reads the configuration and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	conf := &Config{
		Host:          v.GetString("host"),
		Port:          v.GetInt("port"),
		LogLevel:      v.GetString("log-level"),
		RateLimit:     v.GetFloat64("rate-limit"),
		RateBurst:     v.GetInt("rate-burst"),
		EtcdEndpoints: splitList(v.GetString("etcd-endpoints")),
		Service:       v.GetString("service"),
		Balancer:      v.GetString("balancer"),
		Metrics:       v.GetBool("metrics"),
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return conf, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
