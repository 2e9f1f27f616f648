// Package main provides nibblectl, an operator tool for the Nibble server's
// catalog, account tokens and guest data.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nibbleapp/nibble-server/internal/config"
)

var (
	dataPath string
	asJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "nibblectl",
	Short: "Inspect and administer a Nibble server",
	Long: `nibblectl works directly against the server's data directory.

Available commands:
  foods - Browse and search the food catalog
  token - Issue account access tokens
  guest - Inspect a guest session's stored entries`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Server data directory (default: $DATA_PATH or ~/Nibble)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(foodsCmd, tokenCmd, guestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads server configuration, honouring --data-path.
func loadConfig() (*config.Config, error) {
	var args []string
	if dataPath != "" {
		args = append(args, "-data-path", dataPath)
	}
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
