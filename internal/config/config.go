// Package config layers the wall binaries' settings: flags, then TILEWALL_
// environment variables, then an optional YAML config file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TILEWALL_ADDR.
const EnvPrefix = "TILEWALL"

// FlagConfig is the flag naming the optional config file.
const FlagConfig = "config"

// AddCommonFlags registers the flags shared by every binary.
func AddCommonFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "YAML config file")
	fs.String("log", "info", "log level (debug, info, warn, error)")
	fs.String("codec", "json", "wire codec (json, msgpack)")
}

// Load binds cmd's flags into a fresh viper instance, reads the config
// file if one was named and enables environment overrides. Dashes in flag
// names become underscores in the environment.
func Load(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return v, nil
}
