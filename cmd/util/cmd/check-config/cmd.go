package config

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onflow/flow-kernel/config"
	"github.com/onflow/flow-kernel/kernel"
	"github.com/onflow/flow-kernel/kernel/track"
)

var flagConfig string

var Cmd = &cobra.Command{
	Use:   "check-config",
	Short: "validate a kernel configuration file and print the resulting parameters",
	RunE:  runE,
}

func init() {
	Cmd.Flags().StringVar(&flagConfig, "config", "", "path of the configuration file, only the environment is read if empty")
	config.InitFlags(Cmd.Flags())
}

func runE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithFlags(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}

	params := cfg.Parameters()
	packages := make([]string, 0, len(params.NativePackages))
	for _, id := range params.NativePackages {
		packages = append(packages, id.Hex())
	}

	encoded, err := json.MarshalIndent(struct {
		MaxCallDepth        int
		CostLimit           uint
		DirectAccess        []kernel.DirectAccessRule
		NativePackages      []string
		DroppableBlueprints map[string]string
		Track               track.Parameters
	}{
		MaxCallDepth:        params.MaxCallDepth,
		CostLimit:           params.CostLimit,
		DirectAccess:        params.DirectAccess,
		NativePackages:      packages,
		DroppableBlueprints: params.DroppableBlueprints,
		Track:               params.Track,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode parameters: %w", err)
	}

	log.Info().Str("config", flagConfig).Msg("configuration is valid")
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
