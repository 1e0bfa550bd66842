package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Addr           string `json:"addr" mapstructure:"addr"`
	AssetDir       string `json:"assetDir" mapstructure:"assetDir"`
	MaxUploadBytes int64  `json:"maxUploadBytes" mapstructure:"maxUploadBytes"`
}

// BytecacheConfig holds the byte cache service settings.
type BytecacheConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Addr     string `json:"addr" mapstructure:"addr"`
	MaxBytes int64  `json:"maxBytes" mapstructure:"maxBytes"`
	Version  string `json:"version" mapstructure:"version"`
}

// ExperienceConfig holds the sequencing timing policy and the initial
// location selection.
type ExperienceConfig struct {
	DebounceMillis int    `json:"debounceMillis" mapstructure:"debounceMillis"`
	GraceMillis    int    `json:"graceMillis" mapstructure:"graceMillis"`
	LoadTimeout    string `json:"loadTimeout" mapstructure:"loadTimeout"`
	Muted          bool   `json:"muted" mapstructure:"muted"`
	StartLocation  string `json:"startLocation" mapstructure:"startLocation"`
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.assetDir", "./assets")
	viper.SetDefault("server.maxUploadBytes", int64(512<<20))

	viper.SetDefault("api.baseUrl", "http://localhost:8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "skyloop")
	viper.SetDefault("db.sqlitePath", "./skyloop.db")

	viper.SetDefault("store.type", "gorm")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "skyloop-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("bytecache.enabled", false)
	viper.SetDefault("bytecache.addr", ":8081")
	viper.SetDefault("bytecache.maxBytes", int64(1<<30))
	viper.SetDefault("bytecache.version", "v1")

	viper.SetDefault("experience.debounceMillis", 800)
	viper.SetDefault("experience.graceMillis", 3000)
	viper.SetDefault("experience.loadTimeout", "10s")
	viper.SetDefault("experience.muted", false)
	viper.SetDefault("experience.startLocation", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "skyloop-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("skyloop.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the typed HTTP server settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           viper.GetString("server.addr"),
		AssetDir:       viper.GetString("server.assetDir"),
		MaxUploadBytes: viper.GetInt64("server.maxUploadBytes"),
	}
}

// GetBytecacheConfig returns the typed byte cache settings.
func GetBytecacheConfig() BytecacheConfig {
	return BytecacheConfig{
		Enabled:  viper.GetBool("bytecache.enabled"),
		Addr:     viper.GetString("bytecache.addr"),
		MaxBytes: viper.GetInt64("bytecache.maxBytes"),
		Version:  viper.GetString("bytecache.version"),
	}
}

// GetExperienceConfig returns the typed sequencing policy.
func GetExperienceConfig() ExperienceConfig {
	return ExperienceConfig{
		DebounceMillis: viper.GetInt("experience.debounceMillis"),
		GraceMillis:    viper.GetInt("experience.graceMillis"),
		LoadTimeout:    viper.GetString("experience.loadTimeout"),
		Muted:          viper.GetBool("experience.muted"),
		StartLocation:  viper.GetString("experience.startLocation"),
	}
}

// GetOTelConfig returns the typed OTel settings. Durations fall back to
// their defaults when unparseable.
func GetOTelConfig() OTelConfig {
	batchTimeout, err := time.ParseDuration(viper.GetString("otel.batchTimeout"))
	if err != nil {
		batchTimeout = 5 * time.Second
	}
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: batchTimeout,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
