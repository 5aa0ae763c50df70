package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hububba-utils/internal/bot"
	"hububba-utils/internal/config"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Long:  `Connect to Discord and serve commands until SIGINT or SIGTERM.`,
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.Open(openCtx, cfg.Storage, logger)
	cancelOpen()
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()

	panels, err := storage.NewPanelStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("panel store init failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(logger.Named("audit"))
	orderService := orders.NewService(store, logger.Named("orders"))

	botSvc, err := bot.New(cfg, logger, orderService, panels, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *monitoring.Server
	if cfg.Monitoring.Enabled {
		server = monitoring.NewServer(cfg.Monitoring.Addr, logger.Named("monitoring"),
			monitoring.Check{Name: "order-store", Probe: store.Ping},
			monitoring.Check{Name: "discord", Interval: 30 * time.Second, Probe: botSvc.Connected},
		)
		server.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	return nil
}
