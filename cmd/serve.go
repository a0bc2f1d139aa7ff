package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/server"
	"github.com/spigell/jobfit/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("listen", server.DefaultListen, "address to listen on")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adv := newAdvisor(ctx, logger, config)
	store := session.NewStore(logger, config.Server.SessionTTL)

	srv, err := server.New(logger, adv, store, server.Options{
		Listen:         config.Server.Listen,
		MaxUploadBytes: config.Server.MaxUploadBytes,
	})
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return err
	}

	return srv.Run(ctx)
}
