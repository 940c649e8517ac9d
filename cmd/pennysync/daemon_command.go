package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"pennysync/internal/daemon"
	"pennysync/internal/logging"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
	"pennysync/internal/syncer"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(ctx)
		},
	}
}

func runDaemonProcess(ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "pennysync.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	analysisClient := analysis.NewClient(cfg.Endpoints.AnalysisURL, analysis.WithToken(cfg.Endpoints.APIToken))
	expensesClient := expenses.NewClient(cfg.Endpoints.ExpensesURL, expenses.WithToken(cfg.Endpoints.APIToken))

	source := network.NewNetlinkSource(logging.NewComponentLogger(logger, "netlink"), cfg.Network.Interface)
	monitor := network.NewMonitor(logger, source)

	orch := syncer.NewOrchestrator(cfg, store, analysisClient, expensesClient, logger)
	facade := syncer.NewFacade(cfg, store, monitor, orch, analysisClient, expensesClient, logger)

	d, err := daemon.New(cfg, store, monitor, facade, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
