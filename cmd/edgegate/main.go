// Package main is the entry point for edgegate.
package main

import (
	"context"
	"os"
	"path/filepath"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "edgegate.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "edgegate",
	Short: "Single-port edge gateway with a runtime-editable route table",
	Long: `edgegate fronts a set of local backend services on one port, routing by
path against a table that can be edited at runtime through an authenticated
API and that hot-reloads when the sync subsystem rewrites it on disk.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/edgegate/"+defaultConfigFile+")")
}

// findConfigFile searches the default locations. An empty result means
// "run on built-in defaults", which is a supported mode.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "edgegate", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return findConfigFile()
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
