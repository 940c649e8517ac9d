package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"pennysync/internal/config"
	"pennysync/internal/logging"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
	"pennysync/internal/syncer"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// engine bundles the fully wired sync components for one CLI invocation.
type engine struct {
	cfg     *config.Config
	store   *queue.Store
	monitor *network.Monitor
	facade  *syncer.Facade
}

// withEngine wires the store, network monitor, remote clients, orchestrator,
// and facade, then runs fn. The monitor is started before fn and stopped on
// the way out.
func (c *commandContext) withEngine(logger *slog.Logger, fn func(*engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	clientOpts := []analysis.Option{analysis.WithToken(cfg.Endpoints.APIToken)}
	analysisClient := analysis.NewClient(cfg.Endpoints.AnalysisURL, clientOpts...)
	expensesClient := expenses.NewClient(cfg.Endpoints.ExpensesURL, expenses.WithToken(cfg.Endpoints.APIToken))

	source := network.NewNetlinkSource(logging.NewComponentLogger(logger, "netlink"), cfg.Network.Interface)
	monitor := network.NewMonitor(logger, source)

	orch := syncer.NewOrchestrator(cfg, store, analysisClient, expensesClient, logger)
	facade := syncer.NewFacade(cfg, store, monitor, orch, analysisClient, expensesClient, logger)

	if err := monitor.Start(context.Background()); err != nil {
		return err
	}
	defer monitor.Stop()

	return fn(&engine{cfg: cfg, store: store, monitor: monitor, facade: facade})
}
