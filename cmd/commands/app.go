package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/agent"
	"github.com/dohr-michael/skillrouter/internal/config"
	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/models"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/storage"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// setupLogging installs the default slog handler. Logs always go to stderr so
// stdout stays clean for answers and the MCP stdio transport.
func setupLogging(cmd *cli.Command, quietLevel slog.Level) {
	level := quietLevel
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the config file named by --config and applies the
// --skills-dir override.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if dir := cmd.String("skills-dir"); dir != "" {
		cfg.Skills.Dir = dir
	}
	return cfg, nil
}

func loadSkills(cfg *config.Config) *skills.Registry {
	return skills.LoadRegistry(cfg.Skills.Dir,
		skills.WithExtensions(cfg.Skills.Extensions...),
		skills.WithEnabled(cfg.Skills.Enabled...),
	)
}

// newDispatcher binds the tool set. A web search backend that cannot be
// built leaves web_search reporting that it is not configured.
func newDispatcher(ctx context.Context, cfg *config.Config, reg *skills.Registry, bus *events.Bus) *tools.Dispatcher {
	search, err := tools.NewWebSearch(ctx, cfg.Tools.WebSearch)
	if err != nil {
		slog.Warn("web search disabled", "provider", cfg.Tools.WebSearch.Provider, "error", err)
		search = nil
	}
	return tools.NewDispatcher(reg, tools.Options{
		CommandTimeout: cfg.Tools.CommandTimeout.Duration(),
		KubectlPath:    cfg.Tools.KubectlPath,
		Search:         search,
		Bus:            bus,
	})
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg        *config.Config
	bus        *events.Bus
	skills     *skills.Registry
	dispatcher *tools.Dispatcher
	models     *models.Registry
	history    *storage.History
	logger     *storage.EventLogger
	detach     func()
}

type appOptions struct {
	// persist attaches the JSONL event log and the run history.
	persist bool
}

func newApp(ctx context.Context, cmd *cli.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, bus: events.NewBus(cfg.Events.BufferSize)}
	a.skills = loadSkills(cfg)
	a.dispatcher = newDispatcher(ctx, cfg, a.skills, a.bus)
	a.models = models.NewRegistry(cfg.Models)

	if opts.persist {
		a.logger = storage.NewEventLogger(cfg.Storage.EventLogDir, a.bus)
		h, err := storage.OpenHistory(ctx, cfg.Storage.HistoryDB)
		if err != nil {
			slog.Warn("run history disabled", "path", cfg.Storage.HistoryDB, "error", err)
		} else {
			a.history = h
			a.detach = h.Attach(a.bus)
		}
	}
	return a, nil
}

// agentConfig resolves the chat model (the default provider when name is
// empty) and assembles the pipeline configuration.
func (a *app) agentConfig(ctx context.Context, modelName string) (agent.Config, error) {
	chatModel, err := a.models.Resolve(ctx, modelName)
	if err != nil {
		return agent.Config{}, fmt.Errorf("init model: %w", err)
	}

	executorTools, err := tools.ParseSet(a.cfg.Agent.ExecutorTools)
	if err != nil {
		return agent.Config{}, fmt.Errorf("agent.executor_tools: %w", err)
	}

	if modelName == "" {
		modelName = a.models.DefaultName()
	}
	return agent.Config{
		Model:         chatModel,
		ModelName:     modelName,
		Registry:      a.skills,
		Dispatcher:    a.dispatcher,
		Bus:           a.bus,
		Instructions:  agent.LoadInstructions(),
		MaxIterations: a.cfg.Agent.MaxIterations,
		ExecutorTools: executorTools,
	}, nil
}

// close flushes pending events and releases storage. The bus is closed
// first so queued events still reach the event log and the run history.
func (a *app) close() {
	a.bus.Close()
	if a.detach != nil {
		a.detach()
	}
	if a.logger != nil {
		a.logger.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("close history", "error", err)
		}
	}
}

// reload swaps in a new config and rebuilds the skill registry, tools and
// model registry from it. The bus and storage stay attached.
func (a *app) reload(ctx context.Context, cfg *config.Config) {
	a.cfg = cfg
	a.skills = loadSkills(cfg)
	a.dispatcher = newDispatcher(ctx, cfg, a.skills, a.bus)
	a.models = models.NewRegistry(cfg.Models)
}
