package main

import (
	"os"

	"github.com/mohammad-safakhou/picbot/config"
	"github.com/mohammad-safakhou/picbot/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var root = &cobra.Command{
		Use:           "picbot",
		Short:         "Image search bot with private browsing and public publish",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(&cfgPath), searchCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		logging.NewDefault().Error("picbot exited", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.General.LogLevel
	if cfg.General.Debug {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Development: cfg.General.Debug})
}
