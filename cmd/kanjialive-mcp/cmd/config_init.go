package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kanjialive/kanjialive-mcp-server/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file",
	Long: `Write a starter kanjialive-mcp.yaml with the default settings.

The generated file carries a placeholder API key; replace it or leave
it empty and export RAPIDAPI_KEY instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "kanjialive-mcp.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := defaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	header := []byte("# kanjialive-mcp configuration.\n" +
		"# Every value can also be set via KANJIALIVE_-prefixed environment\n" +
		"# variables, e.g. KANJIALIVE_SERVER_HTTP_ADDR. The API key is also\n" +
		"# read from the bare RAPIDAPI_KEY variable.\n\n")

	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// defaultConfig returns the settings the server would run with when no
// config file exists, plus a placeholder key to fill in.
func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.API.Key = "YOUR_RAPIDAPI_KEY_HERE"
	cfg.Cache.Enabled = true
	return cfg
}
