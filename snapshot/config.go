package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of a Client.
type Config struct {
	Update      UpdateMode
	CI          bool
	SnapshotDir string
	LogDir      string
	LogLevel    slog.Level
	LegacyEval  bool
	Color       bool
	HistoryDB   string
}

// NewViper returns a viper instance with snapshot defaults, SNAPSHOT_*
// environment variables and an optional .snapshot.{yaml,json,toml} file
// from the working directory or any of the given paths.
func NewViper(configPaths ...string) *viper.Viper {
	v := viper.New()
	v.SetDefault("update", "")
	v.SetDefault("dir", defaultSnapDir)
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("legacy_eval", true)
	v.SetDefault("color", false)
	v.SetDefault("history_db", "")

	v.SetEnvPrefix("SNAPSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.BindEnv("ci", "SNAPSHOT_CI", "CI") //nolint:errcheck

	v.SetConfigName(".snapshot")
	v.AddConfigPath(".")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	return v
}

// LoadConfig reads configuration through NewViper.
func LoadConfig(configPaths ...string) (Config, error) {
	return ConfigFrom(NewViper(configPaths...))
}

// ConfigFrom decodes a Config from v. A missing config file is not an
// error. An unset update mode defaults to none on CI and new elsewhere.
func ConfigFrom(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read snapshot config: %w", err)
		}
	}

	cfg := Config{
		CI:          v.GetBool("ci"),
		SnapshotDir: v.GetString("dir"),
		LogDir:      v.GetString("log_dir"),
		LegacyEval:  v.GetBool("legacy_eval"),
		Color:       v.GetBool("color"),
		HistoryDB:   v.GetString("history_db"),
	}

	switch raw := v.GetString("update"); {
	case raw != "":
		mode, err := ParseUpdateMode(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Update = mode
	case cfg.CI:
		cfg.Update = UpdateNone
	default:
		cfg.Update = UpdateNew
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}
	return cfg, nil
}
