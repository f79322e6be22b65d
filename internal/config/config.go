// Package config loads the indexer and API server configuration from
// environment variables (and, when ENV=local, an overlay file), following
// the teacher's pkg/config.Load(env) + viper.Unmarshal pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synnergy-labs/token-indexer/internal/errs"
)

// Indexer holds the pipeline binary's configuration (INDEXER_* env vars).
type Indexer struct {
	DatabaseURL               string `mapstructure:"database_url"`
	MaxConnections            int    `mapstructure:"max_connections"`
	RPCURL                    string `mapstructure:"rpc_url"`
	GRPCURL                   string `mapstructure:"grpc_url"`
	StartSlot                 int64  `mapstructure:"start_slot"`
	Workers                   int    `mapstructure:"workers"`
	MaxConcurrentBlockFetches int    `mapstructure:"max_concurrent_block_fetches"`
	IndexRecent               bool   `mapstructure:"index_recent"`
	MetricsHost               string `mapstructure:"metrics_host"`
	MetricsPort               int    `mapstructure:"metrics_port"`
}

// API holds the server binary's configuration (API_* env vars).
type API struct {
	DatabaseURL    string `mapstructure:"database_url"`
	MaxConnections int    `mapstructure:"max_connections"`
	ServerPort     int    `mapstructure:"server_port"`
	MetricsHost    string `mapstructure:"metrics_host"`
	MetricsPort    int    `mapstructure:"metrics_port"`
}

const (
	defaultIndexerMaxConnections = 10
	defaultAPIMaxConnections     = 100
	defaultAPIServerPort         = 4040
	defaultWorkers               = 100
	defaultMaxConcurrentRemote   = 20
	defaultMaxConcurrentLocal    = 200
)

// newViper builds a viper instance reading ENV=local to decide
// whether to merge config/local.json over plain environment variables,
// mirroring the teacher's Load(env) overlay.
func newViper(prefix string) (*viper.Viper, error) {
	_ = godotenv.Load() // optional .env; absence is not an error

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if s := os.Getenv("ENV"); s == "local" {
		v.SetConfigName("local")
		v.SetConfigType("json")
		v.AddConfigPath("config")
		if err := v.MergeInConfig(); err != nil {
			return nil, errs.Wrap(errs.KindConfig, err, "merge local config overlay")
		}
	}
	return v, nil
}

// bindEnv registers key against the first of names that resolves, so
// env-var aliases (e.g. a shared DATABASE_CONFIG__URL fallback) and the
// local.json overlay both flow into the same mapstructure field.
func bindEnv(v *viper.Viper, key string, names ...string) error {
	args := append([]string{key}, names...)
	if err := v.BindEnv(args...); err != nil {
		return errs.Wrap(errs.KindConfig, err, "bind env var for "+key)
	}
	return nil
}

// LoadIndexer reads INDEXER_* environment variables (and, under ENV=local,
// config/local.json) into an Indexer config.
func LoadIndexer() (*Indexer, error) {
	v, err := newViper("INDEXER")
	if err != nil {
		return nil, err
	}

	if err := bindEnv(v, "database_url", "INDEXER_DATABASE_CONFIG__URL", "DATABASE_CONFIG__URL"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "rpc_url", "INDEXER_RPC_CONFIG__URL"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "grpc_url", "INDEXER_GRPC_URL"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "max_connections", "INDEXER_MAX_CONNECTIONS"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "start_slot", "INDEXER_START_SLOT"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "workers", "INDEXER_WORKERS"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "max_concurrent_block_fetches", "INDEXER_MAX_CONCURRENT_BLOCK_FETCHES"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "index_recent", "INDEXER_INDEX_RECENT"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "metrics_host", "INDEXER_METRICS_HOST"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "metrics_port", "INDEXER_METRICS_PORT"); err != nil {
		return nil, err
	}

	v.SetDefault("max_connections", defaultIndexerMaxConnections)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("index_recent", false)

	maxConcurrent := defaultMaxConcurrentRemote
	rpcURL := v.GetString("rpc_url")
	if strings.Contains(rpcURL, "127.0.0.1") || strings.Contains(rpcURL, "localhost") {
		maxConcurrent = defaultMaxConcurrentLocal
	}
	v.SetDefault("max_concurrent_block_fetches", maxConcurrent)

	var cfg Indexer
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "unmarshal indexer config")
	}

	if cfg.DatabaseURL == "" {
		return nil, errs.New(errs.KindConfig, "INDEXER_DATABASE_CONFIG__URL is required")
	}
	if cfg.RPCURL == "" {
		return nil, errs.New(errs.KindConfig, "INDEXER_RPC_CONFIG__URL is required")
	}

	return &cfg, nil
}

// LoadAPI reads API_* environment variables (and, under ENV=local,
// config/local.json) into an API config.
func LoadAPI() (*API, error) {
	v, err := newViper("API")
	if err != nil {
		return nil, err
	}

	if err := bindEnv(v, "database_url", "API_DATABASE_CONFIG__URL", "DATABASE_CONFIG__URL"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "max_connections", "API_MAX_CONNECTIONS"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "server_port", "API_SERVER_PORT"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "metrics_host", "API_METRICS_HOST"); err != nil {
		return nil, err
	}
	if err := bindEnv(v, "metrics_port", "API_METRICS_PORT"); err != nil {
		return nil, err
	}

	v.SetDefault("max_connections", defaultAPIMaxConnections)
	v.SetDefault("server_port", defaultAPIServerPort)

	var cfg API
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "unmarshal api config")
	}

	if cfg.DatabaseURL == "" {
		return nil, errs.New(errs.KindConfig, "API_DATABASE_CONFIG__URL is required")
	}

	return &cfg, nil
}

// MetricsAddr formats "host:port", or "" if host is unset.
func (c *Indexer) MetricsAddr() string {
	if c.MetricsHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// MetricsAddr formats "host:port", or "" if host is unset.
func (c *API) MetricsAddr() string {
	if c.MetricsHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}
