package main

import (
	"context"

	"github.com/cbegin/pianofall-go/internal/config"
	"github.com/cbegin/pianofall-go/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pianofall",
		Short:         "Falling-note piano trainer",
		Long:          `Plays a MIDI score as falling notes and judges your playing against it, one section at a time.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (overrides PIANOFALL_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "log as JSON")

	cmd.AddCommand(newPlayCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logOpts := []logger.Option{logger.WithWriter(cmd.ErrOrStderr())}
	if o.jsonLogs {
		logOpts = append(logOpts, logger.WithJSON())
	}
	if err := logger.Init(logOpts...); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	o.cfg = cfg
	return nil
}
