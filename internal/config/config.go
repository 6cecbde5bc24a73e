package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tierStaking/internal/model"
)

const (
	DefaultProgramID = "HJsEfnpgjEhEPa3SYcg6pchqhh2pFGSi331hTyqs5iis"

	ClockSystem  = "system"
	ClockCluster = "cluster"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ProgramID    string
	StateFile    string
	Journal      string
	PGDSN        string
	Clock        string
	RPCURL       string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
	Tiers        [model.TierCount]model.Tier
	StakingMint  string
	RewardMint   string
	Signer       string
	Listen       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STAKING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("program-id", DefaultProgramID)
	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("clock", ClockSystem)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("listen", ":8080")

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

	tiers, err := ParseTiers(getStringSlice(v, "lock-periods"), getStringSlice(v, "reward-rates"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ProgramID:    v.GetString("program-id"),
		StateFile:    v.GetString("state-file"),
		Journal:      v.GetString("journal"),
		PGDSN:        v.GetString("pg-dsn"),
		Clock:        strings.ToLower(v.GetString("clock")),
		RPCURL:       v.GetString("rpc"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
		Tiers:        tiers,
		StakingMint:  v.GetString("staking-mint"),
		RewardMint:   v.GetString("reward-mint"),
		Signer:       v.GetString("signer"),
		Listen:       v.GetString("listen"),
	}

	switch cfg.Clock {
	case ClockSystem:
	case ClockCluster:
		if cfg.RPCURL == "" {
			return Config{}, fmt.Errorf("clock %q requires --rpc", cfg.Clock)
		}
	default:
		return Config{}, fmt.Errorf("unknown clock %q", cfg.Clock)
	}

	return cfg, nil
}

// PublicKey parses a base58 key value, naming the setting in errors.
func PublicKey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return key, nil
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
