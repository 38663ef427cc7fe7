package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/symex/internal/config"
)

// initCmd: symex init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file holding the default settings",
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if path == "" {
			path = config.DefaultFile
		}
		if err := config.Write(path, config.Default()); err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return
		}
		fmt.Printf("Configuration file created/updated: %s\n", path)
	},
}
