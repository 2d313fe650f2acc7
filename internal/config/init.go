package config

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultYAML renders the default configuration as YAML, for writing a
// starter config file.
func DefaultYAML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal defaults")
	}
	return out, nil
}
