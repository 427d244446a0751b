package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocap-agent/internal/common/database"
	"ocap-agent/internal/services/index"
)

var buildRegistryPath string

var buildCmd = &cobra.Command{
	Use:   "build <workbook.xlsx>",
	Short: "Recreate the fact and relationship indices from a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildRegistryPath, "registry", "", "Also write the node registry to this path")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return err
	}
	defer es.Close()

	ctx := cmd.Context()
	if err := es.Ping(ctx); err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}

	facts, err := index.ReadFacts(args[0])
	if err != nil {
		return err
	}
	log.Info("workbook loaded", map[string]interface{}{"path": args[0], "facts": len(facts)})

	res, err := index.NewBuilder(es.Client, cfg.OCAP, log).BuildFromFacts(ctx, facts)
	if err != nil {
		return err
	}

	if buildRegistryPath != "" {
		reg, err := index.ExportRegistry(facts, buildRegistryPath)
		if err != nil {
			return err
		}
		log.Info("registry written", map[string]interface{}{"path": buildRegistryPath, "counts": reg.Counts()})
	}

	return printJSON(cmd.OutOrStdout(), res)
}
