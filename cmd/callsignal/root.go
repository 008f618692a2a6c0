package main

import (
	"log/slog"
	"os"

	"github.com/spacesedan/callsignal/config"
	"github.com/spacesedan/callsignal/internal/logging"
	"github.com/spf13/cobra"
)

type commandContext struct {
	envFlag        string
	scoresRootFlag string
	cfg            *config.Config
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}

	env := c.envFlag
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "dev"
	}
	envErr := config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger(slog.LevelInfo)
		return cfg, err
	}
	cfg.Env = env
	if c.scoresRootFlag != "" {
		cfg.ScoresRoot = c.scoresRootFlag
	}

	logging.InitLogger(cfg.LogLevel)
	if envErr != nil {
		slog.Warn("[Config] " + envErr.Error())
	}
	c.cfg = &cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "callsignal",
		Short:         "Earnings call keyword sentiment scoring and summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFlag, "env", "", "Environment name used to pick config/envs/.env.<env>")
	rootCmd.PersistentFlags().StringVar(&ctx.scoresRootFlag, "scores-root", "", "Directory holding per-company score files")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newWeightCommand(ctx))
	rootCmd.AddCommand(newSummarizeCommand(ctx))

	return rootCmd
}
