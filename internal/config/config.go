// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Printer   PrinterConfig   `mapstructure:"printer"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig holds the per-connection tunables
type PrinterConfig struct {
	ExtruderCount     int           `mapstructure:"extruder_count"`
	RequiredOkCount   int           `mapstructure:"required_ok_count"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OkSilenceTimeout  time.Duration `mapstructure:"ok_silence_timeout"`
	TelemetryInterval time.Duration `mapstructure:"telemetry_interval"`
	CandidateBitrates []int         `mapstructure:"candidate_bitrates"`
	ProbeWindow       time.Duration `mapstructure:"probe_window"`
	ProbeReadTimeout  time.Duration `mapstructure:"probe_read_timeout"`
	BootloaderWait    time.Duration `mapstructure:"bootloader_wait"`
	BootloaderProbe   bool          `mapstructure:"bootloader_probe"`
	QueueCapacity     int           `mapstructure:"queue_capacity"`
	PreloadLines      int           `mapstructure:"preload_lines"`
	WriteRetryDelay   time.Duration `mapstructure:"write_retry_delay"`
	ErrorLogSize      int           `mapstructure:"error_log_size"`
	FatalErrors       []string      `mapstructure:"fatal_errors"`
}

// DiscoveryConfig controls the serial port monitor
type DiscoveryConfig struct {
	PortScanInterval      time.Duration `mapstructure:"port_scan_interval"`
	MaxConcurrentConnects int64         `mapstructure:"max_concurrent_connects"`
	AutoConnect           bool          `mapstructure:"auto_connect"`
	Patterns              []string      `mapstructure:"patterns"`
	ExcludeNames          []string      `mapstructure:"exclude_names"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. A missing
// config file is not an error; defaults and environment apply.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./config", "/etc/printer-service"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("PRINTER_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printer defaults
	v.SetDefault("printer.extruder_count", 1)
	v.SetDefault("printer.required_ok_count", 10)
	v.SetDefault("printer.read_timeout", "2s")
	v.SetDefault("printer.write_timeout", "10s")
	v.SetDefault("printer.ok_silence_timeout", "5s")
	v.SetDefault("printer.telemetry_interval", "5s")
	v.SetDefault("printer.candidate_bitrates", []int{250000, 230400, 115200, 57600, 38400, 19200, 9600})
	v.SetDefault("printer.probe_window", "5s")
	v.SetDefault("printer.probe_read_timeout", "500ms")
	v.SetDefault("printer.bootloader_wait", "1500ms")
	v.SetDefault("printer.bootloader_probe", true)
	v.SetDefault("printer.queue_capacity", 256)
	v.SetDefault("printer.preload_lines", 4)
	v.SetDefault("printer.write_retry_delay", "500ms")
	v.SetDefault("printer.error_log_size", 200)
	v.SetDefault("printer.fatal_errors", []string{
		"Extruder switched off",
		"Temperature heated bed switched off",
		"Something is wrong, please turn off the printer.",
	})

	// Discovery defaults
	v.SetDefault("discovery.port_scan_interval", "5s")
	v.SetDefault("discovery.max_concurrent_connects", 4)
	v.SetDefault("discovery.auto_connect", true)
	v.SetDefault("discovery.patterns", []string{
		"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/cu.usb*", "/dev/serial/by-id/*",
	})
	v.SetDefault("discovery.exclude_names", []string{"Bluetooth"})

	// App defaults
	v.SetDefault("app.name", "printer-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	p := config.Printer
	if p.ExtruderCount < 1 {
		return fmt.Errorf("printer.extruder_count must be at least 1")
	}
	if p.RequiredOkCount < 1 {
		return fmt.Errorf("printer.required_ok_count must be at least 1")
	}
	if len(p.CandidateBitrates) == 0 {
		return fmt.Errorf("printer.candidate_bitrates must not be empty")
	}
	for _, b := range p.CandidateBitrates {
		if b <= 0 {
			return fmt.Errorf("printer.candidate_bitrates contains invalid bitrate %d", b)
		}
	}
	if p.ReadTimeout <= 0 || p.WriteTimeout <= 0 {
		return fmt.Errorf("printer read and write timeouts must be positive")
	}
	if p.QueueCapacity < 1 {
		return fmt.Errorf("printer.queue_capacity must be at least 1")
	}

	if config.Discovery.PortScanInterval <= 0 {
		return fmt.Errorf("discovery.port_scan_interval must be positive")
	}
	if config.Discovery.MaxConcurrentConnects < 1 {
		return fmt.Errorf("discovery.max_concurrent_connects must be at least 1")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
