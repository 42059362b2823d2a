package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldreport/chatsync/internal/config"
	"github.com/fieldreport/chatsync/internal/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chatsyncd",
	Short: "Chat synchronization daemon for the field reporting app",
	Long: "chatsyncd keeps a local mirror of conversations, messages and presence\n" +
		"in sync with the remote chat service via periodic differential polling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".chatsync", "config.toml")
		}

		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}

		app := fx.New(daemon.Module(cfg))
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
