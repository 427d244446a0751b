package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ocap-indexer",
	Short: "Build the OCAP Elasticsearch indices and node registry",
	Long: `Build the OCAP knowledge base from a spreadsheet of historical cases.

The workbook's first sheet must carry a header row with any of the columns
Style, Defect, Operation, Error and Action.

Examples:
  ocap-indexer build data/cases.xlsx
  ocap-indexer build --registry configs/registry.json data/cases.xlsx
  ocap-indexer registry --out configs/registry.json data/cases.xlsx`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (defaults to configs/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "ocap-indexer")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
