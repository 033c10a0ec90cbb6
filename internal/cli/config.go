// Config loading for the cladecall CLI.
package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyPenalty      = "penalty"
	cfgKeyInternalOnly = "internal_only"
	cfgKeyWorkers      = "workers"
)

// loadConfig reads config.yaml from the resolved config directory using
// Viper and returns the run configuration. A missing config file is not an
// error; defaults apply.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyPenalty, types.DefaultPenalty)
	v.SetDefault(cfgKeyInternalOnly, false)
	v.SetDefault(cfgKeyWorkers, types.DefaultWorkers)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return types.Config{
		Penalty:      v.GetFloat64(cfgKeyPenalty),
		InternalOnly: v.GetBool(cfgKeyInternalOnly),
		Workers:      v.GetInt(cfgKeyWorkers),
	}, nil
}
