package config

import (
	"errors"
	"strings"

	"docflow/common"
	"docflow/persistence"

	"github.com/spf13/viper"
)

const EnvPrefix = "DOCFLOW"

// Config holds the configuration of the service.
type Config struct {
	ServiceName string `mapstructure:"service_name"`

	Database struct {
		Driver string `mapstructure:"driver"`
		Args   string `mapstructure:"args"`
	} `mapstructure:"database"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Elasticsearch struct {
		Addresses []string `mapstructure:"addresses"`
		Index     string   `mapstructure:"index"`
		// Rate is the number of activities indexed per second, 0 for unlimited
		Rate float64 `mapstructure:"rate"`
	} `mapstructure:"elasticsearch"`
	Notification struct {
		Webhook string `mapstructure:"webhook"`
	} `mapstructure:"notification"`
	Tracing struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tracing"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

var defaults = map[string]interface{}{
	"service_name":            common.DefaultServiceName,
	"database.driver":         persistence.DriverMysql,
	"database.args":           "",
	"http.addr":               ":80",
	"elasticsearch.addresses": []string{},
	"elasticsearch.index":     "docflow-activities",
	"elasticsearch.rate":      50,
	"notification.webhook":    "",
	"tracing.enabled":         false,
	"log.level":               "info",
	"log.format":              "text",
}

// LoadConfig reads config.yaml from the working directory or ./config when present, then applies the
// DOCFLOW_* environment variables (DOCFLOW_DATABASE_ARGS overrides database.args).
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Elasticsearch.Addresses = trimAll(config.Elasticsearch.Addresses)
	return &config, nil
}

func (c *Config) DatabaseConfig() (*persistence.DatabaseConfig, error) {
	dbConfig := &persistence.DatabaseConfig{DriverType: c.Database.Driver, DriverArgs: c.Database.Args}
	if err := dbConfig.Validate(); err != nil {
		return nil, err
	}
	return dbConfig, nil
}

func trimAll(values []string) []string {
	trimmed := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return trimmed
}
