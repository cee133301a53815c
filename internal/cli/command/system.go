package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filelink-go/internal/cli/connection"
	"github.com/yndnr/filelink-go/internal/cli/output"
	"github.com/yndnr/filelink-go/internal/infra/buildinfo"
)

type statusResult struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server health commands",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check that the server process is up",
				Action: checkEndpoint("/health"),
			},
			{
				Name:   "ready",
				Usage:  "Check that the server can reach its storage backend",
				Action: checkEndpoint("/ready"),
			},
		},
	}
}

func checkEndpoint(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		client := EnsureConnected(c)

		ctx, cancel := requestContext(c)
		defer cancel()

		resp, err := client.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var result statusResult
		if err := connection.ParseResponse(resp, &result); err != nil {
			var apiErr *connection.APIError
			if errors.As(err, &apiErr) {
				return fmt.Errorf("%s not ok: %w", client.BaseURL(), err)
			}
			return err
		}

		if ParseGlobalFlags(c).Output != output.FormatTable {
			return render(c, result)
		}
		fmt.Fprintf(writer(c), "✓ %s is %s\n", client.BaseURL(), result.Status)
		if result.Version != "" {
			fmt.Fprintf(writer(c), "  Version: %s\n", result.Version)
		}
		return nil
	}
}

// VersionCommand prints client build information and, when reachable,
// the server version.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show client and server versions",
		Action: func(c *cli.Context) error {
			info := struct {
				Client buildinfo.Info `json:"client"`
				Server string         `json:"server"`
			}{Client: buildinfo.Get(), Server: "unreachable"}

			ctx, cancel := requestContext(c)
			defer cancel()

			if resp, err := EnsureConnected(c).Get(ctx, "/health"); err == nil {
				var result statusResult
				if connection.ParseResponse(resp, &result) == nil && result.Version != "" {
					info.Server = result.Version
				}
			}

			if ParseGlobalFlags(c).Output != output.FormatTable {
				return render(c, info)
			}
			fmt.Fprintf(writer(c), "Client: %s\nServer: %s\n", buildinfo.String(), info.Server)
			return nil
		},
	}
}
