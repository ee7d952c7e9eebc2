package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Signer key environment variables, read without the VAULTFLOW_ prefix.
const (
	envPrivateKey         = "PRIVATE_KEY"
	envPrivateKeyDelegate = "PRIVATE_KEY_DELEGATE"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	HermesURL     string
	ExplorerURL   string
	GasBudget     uint64
	SettleTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	HTTPTimeout   time.Duration
	Journal       string
	SessionPath   string
	PostgresDSN   string
	LogLevel      string

	PrivateKey         string
	DelegatePrivateKey string

	Addresses Addresses
}

// Load merges config file, environment variables, .env and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "https://fullnode.testnet.sui.io:443")
	v.SetDefault("hermes", "https://hermes-beta.pyth.network")
	v.SetDefault("explorer", "https://testnet.suivision.xyz/txblock/")
	v.SetDefault("gas-budget", uint64(100_000_000))
	v.SetDefault("settle-timeout", 10*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("journal", "./data/workflows.jsonl")
	v.SetDefault("session", "./data/session.json")
	v.SetDefault("postgres-dsn", "")
	v.SetDefault("env-file", ".env")
	v.SetDefault("log-level", "info")
	setAddressDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := loadEnvFile(v.GetString("env-file")); err != nil {
		return Config{}, err
	}

	addrs, err := loadAddresses(v)
	if err != nil {
		return Config{}, fmt.Errorf("addresses: %w", err)
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		HermesURL:          v.GetString("hermes"),
		ExplorerURL:        v.GetString("explorer"),
		GasBudget:          v.GetUint64("gas-budget"),
		SettleTimeout:      v.GetDuration("settle-timeout"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		HTTPTimeout:        v.GetDuration("http-timeout"),
		Journal:            v.GetString("journal"),
		SessionPath:        v.GetString("session"),
		PostgresDSN:        v.GetString("postgres-dsn"),
		LogLevel:           v.GetString("log-level"),
		PrivateKey:         os.Getenv(envPrivateKey),
		DelegatePrivateKey: os.Getenv(envPrivateKeyDelegate),
		Addresses:          addrs,
	}
	if cfg.GasBudget == 0 {
		return Config{}, fmt.Errorf("gas budget must be greater than zero")
	}

	return cfg, nil
}

// loadEnvFile loads signer keys from path without overriding the environment.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	out := c
	if out.PrivateKey != "" {
		out.PrivateKey = "<redacted>"
	}
	if out.DelegatePrivateKey != "" {
		out.DelegatePrivateKey = "<redacted>"
	}
	if out.PostgresDSN != "" {
		out.PostgresDSN = "<redacted>"
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
