package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/config"
	"github.com/dohr-michael/skillrouter/internal/gateway"
	"github.com/dohr-michael/skillrouter/internal/heartbeat"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP/WebSocket gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model provider to use (empty = models.default)",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelInfo)

	a, err := newApp(ctx, cmd, appOptions{persist: true})
	if err != nil {
		return err
	}
	defer a.close()

	// CLI flags override config
	host, port := a.cfg.Gateway.Host, a.cfg.Gateway.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	modelName := cmd.String("model")
	agentCfg, err := a.agentConfig(ctx, modelName)
	if err != nil {
		return err
	}
	slog.Info("skills loaded", "count", a.skills.Len(), "dir", a.cfg.Skills.Dir)

	server := gateway.NewServer(gateway.Options{
		Host:    host,
		Port:    port,
		Bus:     a.bus,
		Agent:   agentCfg,
		History: a.history,
	})

	// SIGHUP reloads .env and config, then rebuilds the agent wiring.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), a.cfg)
	reloader.OnReload(func(cfg *config.Config) {
		if dir := cmd.String("skills-dir"); dir != "" {
			cfg.Skills.Dir = dir
		}
		a.reload(ctx, cfg)
		next, err := a.agentConfig(ctx, modelName)
		if err != nil {
			slog.Error("reload: keeping previous agent", "error", err)
			return
		}
		server.SetAgentConfig(next)
		slog.Info("reload: agent rebuilt", "skills", a.skills.Len())
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloader.Watch(ctx, hup)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go func() {
		hb := heartbeat.NewWriter(heartbeat.Path(config.RootPath()), heartbeat.DefaultInterval, server.Details)
		if err := hb.Run(hbCtx); err != nil {
			slog.Warn("heartbeat disabled", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: %w", err)
	}
}
