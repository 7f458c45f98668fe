package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Load reads a YAML configuration file into cfg. Environment variables
// prefixed with COMET_ override file values (COMET_API_TOKEN overrides
// api.token).
func Load(filePath string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COMET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}

	return nil
}
