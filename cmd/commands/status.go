package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/config"
	"github.com/dohr-michael/skillrouter/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a gateway is running",
		Action: func(_ context.Context, cmd *cli.Command) error {
			status, hb, err := heartbeat.Check(heartbeat.Path(config.RootPath()), heartbeat.DefaultMaxAge)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			out := stdout(cmd)
			switch status {
			case heartbeat.StatusAlive:
				fmt.Fprintf(out, "Gateway: ALIVE on %s (PID %d, uptime %s, %d skills)\n", hb.Addr, hb.PID, hb.Uptime(), hb.Skills)
			case heartbeat.StatusStale:
				fmt.Fprintf(out, "Gateway: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Fprintln(out, "Gateway: NOT RUNNING")
			}
			return nil
		},
	}
}
