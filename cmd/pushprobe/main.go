package main

import (
	"strings"

	"github.com/loykin/pushprobe/cmd/pushprobe/commands"
	"github.com/loykin/pushprobe/cmd/pushprobe/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "pushprobe",
	Short:         "Verify a booking backend and its push notification pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	v := viper.GetViper()
	v.SetDefault("config", commands.DefaultConfigPath)

	// Environment variables support: PUSHPROBE_CONFIG, PUSHPROBE_BACKEND_BASE_URL, ...
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to the pushprobe config yaml")
	rootCmd.PersistentFlags().String("log-level", "", "log level: error, warn, info, debug")
	rootCmd.PersistentFlags().String("backend-url", "", "base URL of the deployed backend")
	rootCmd.PersistentFlags().String("local-url", "", "base URL of the local backend")
	rootCmd.PersistentFlags().String("store-driver", "", "history store driver: sqlite or postgresql")
	commands.RunCmd.Flags().Bool("strict", false, "exit 1 when any step fails")
	commands.RunCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics for the textfile collector to this path")
	commands.RunCmd.Flags().Bool("no-history", false, "do not record the run in the history store")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("backend.base_url", rootCmd.PersistentFlags().Lookup("backend-url"))
	_ = v.BindPFlag("local.base_url", rootCmd.PersistentFlags().Lookup("local-url"))
	_ = v.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	_ = v.BindPFlag("strict", commands.RunCmd.Flags().Lookup("strict"))
	_ = v.BindPFlag("metrics.textfile", commands.RunCmd.Flags().Lookup("metrics-textfile"))
	_ = v.BindPFlag("store.disabled", commands.RunCmd.Flags().Lookup("no-history"))

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.SuitesCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.MockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
