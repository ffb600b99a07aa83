// Package cmd provides the CLI commands for the Kanji Alive MCP server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanjialive/kanjialive-mcp-server/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "kanjialive-mcp",
	Short: "Kanji Alive MCP server - Japanese kanji lookup over MCP",
	Long: `kanjialive-mcp serves the Kanji Alive database to MCP clients over
the Streamable HTTP transport.

It exposes tools for basic and advanced kanji search and for full
per-character detail records, backed by the Kanji Alive API on RapidAPI.

Quick start:
  1. Export your RapidAPI key: export RAPIDAPI_KEY=...
  2. Run: kanjialive-mcp serve
  3. Point an MCP client at http://127.0.0.1:8080/mcp

Configuration:
  Config is loaded from kanjialive-mcp.yaml in the current directory,
  $HOME/.kanjialive-mcp/, or /etc/kanjialive-mcp/.

  Environment variables can override config values with the KANJIALIVE_
  prefix. Example: KANJIALIVE_SERVER_HTTP_ADDR=:9090

Commands:
  serve        Start the MCP server
  config init  Write a starter config file
  version      Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./kanjialive-mcp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
