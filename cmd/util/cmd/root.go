package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	checkconfig "github.com/onflow/flow-kernel/cmd/util/cmd/check-config"
	substates "github.com/onflow/flow-kernel/cmd/util/cmd/list-substates"
	checkpoint "github.com/onflow/flow-kernel/cmd/util/cmd/pebble-checkpoint"
)

var (
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "util",
	Short: "Utility functions for a kernel substate database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setLogLevel(flagLogLevel)
	},
}

var RootCmd = rootCmd

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "log-level", "l", "info", "log level (panic, fatal, error, warn, info, debug)")

	addCommands()

	cobra.OnInitialize(initConfig)
}

func addCommands() {
	rootCmd.AddCommand(substates.Cmd)
	rootCmd.AddCommand(checkpoint.Cmd)
	rootCmd.AddCommand(checkconfig.Cmd)
}

func initConfig() {
	viper.AutomaticEnv()
}

func setLogLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}
