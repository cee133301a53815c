package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filelink-go/internal/cli/connection"
)

type sweepResult struct {
	Deleted    int    `json:"deleted"`
	TTLSeconds int64  `json:"ttl_seconds"`
	SweptAt    string `json:"swept_at"`
}

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Administrative commands (require --admin-token)",
		Subcommands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "Delete links older than the TTL",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "age cutoff; the server's configured TTL when unset",
					},
				},
				Action: adminSweep,
			},
		},
	}
}

func adminSweep(c *cli.Context) error {
	if ParseGlobalFlags(c).AdminToken == "" {
		return fmt.Errorf("admin token required (--admin-token or FILELINK_ADMIN_TOKEN)")
	}

	body := map[string]int64{}
	if c.IsSet("ttl") {
		ttl := c.Duration("ttl")
		if ttl < time.Second {
			return fmt.Errorf("--ttl must be at least 1s")
		}
		body["ttl_seconds"] = int64(ttl / time.Second)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := EnsureConnected(c).Post(ctx, "/admin/v1/sweep", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result sweepResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return render(c, result)
}
