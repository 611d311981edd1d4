package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "./config/manager.yml"

// Version is the version of the manager, set at the build time.
var Version string

// Config top level struct representing the config for the manager.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// LoadFile loads config from the provided path and validates it. A missing
// file is not an error, the defaults are used then.
func LoadFile(configPath string) (Config, error) {
	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			Address: "127.0.0.1",
			Port:    6142,
			Index: IndexConfiguration{
				CrawlInterval: 3600,
			},
		},
	}
	configData, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	err = config.ApplicationConfiguration.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}
