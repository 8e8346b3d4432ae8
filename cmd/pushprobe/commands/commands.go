// Package commands holds the pushprobe subcommands.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/loykin/pushprobe/cmd/pushprobe/config"
	"github.com/spf13/viper"
)

// ExitError asks main to exit with Code. Err may be nil when the run itself
// already reported the failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// loadConfig reads the config file named by --config/PUSHPROBE_CONFIG,
// applies overrides and configures logging. A missing default config file
// is not an error; every setting then comes from defaults and overrides.
func loadConfig() (*config.ConfigDoc, error) {
	v := viper.GetViper()
	path := strings.TrimSpace(v.GetString("config"))

	var doc config.ConfigDoc
	if path != "" {
		if err := doc.Load(path); err != nil {
			if !os.IsNotExist(err) || path != DefaultConfigPath {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}
	if err := doc.ApplyOverrides(v); err != nil {
		return nil, err
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "./pushprobe.yaml"
