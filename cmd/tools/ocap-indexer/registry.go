package main

import (
	"github.com/spf13/cobra"

	"ocap-agent/internal/services/index"
)

var registryOut string

var registryCmd = &cobra.Command{
	Use:   "registry <workbook.xlsx>",
	Short: "Write the node registry derived from a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		facts, err := index.ReadFacts(args[0])
		if err != nil {
			return err
		}
		reg, err := index.ExportRegistry(facts, registryOut)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"path":   registryOut,
			"counts": reg.Counts(),
		})
	},
}

func init() {
	registryCmd.Flags().StringVar(&registryOut, "out", "configs/registry.json", "Registry output path")
	rootCmd.AddCommand(registryCmd)
}
