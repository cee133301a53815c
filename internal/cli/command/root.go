package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filelink-go/internal/cli/config"
	"github.com/yndnr/filelink-go/internal/cli/connection"
	"github.com/yndnr/filelink-go/internal/cli/output"
	"github.com/yndnr/filelink-go/internal/infra/buildinfo"
)

const defaultTimeout = 30 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "filelink-cli",
		Usage:   "FileLink command-line management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LinkCommand(),
			AdminCommand(),
			SystemCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: applyConfigFile,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"FILELINK_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "FileLink server address (e.g., localhost:5080)",
			EnvVars: []string{"FILELINK_SERVER"},
			Value:   config.Default().Server,
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "Bearer token for /admin endpoints",
			EnvVars: []string{"FILELINK_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   config.Default().Output,
		},
	}
}

// applyConfigFile fills global flags the user did not set from the
// config file.
func applyConfigFile(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	for name, val := range map[string]string{
		"server":      cfg.Server,
		"admin-token": cfg.AdminToken,
		"output":      cfg.Output,
	} {
		if c.IsSet(name) || val == "" {
			continue
		}
		if err := c.Set(name, val); err != nil {
			return err
		}
	}

	if _, err := output.ParseFormat(c.String("output")); err != nil {
		return err
	}
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigPath string
	Server     string
	AdminToken string
	Output     output.Format
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		ConfigPath: c.String("config"),
		Server:     c.String("server"),
		AdminToken: c.String("admin-token"),
		Output:     format,
	}
}

// EnsureConnected returns an HTTP client for the configured server.
func EnsureConnected(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Server, flags.AdminToken)
}

// requestContext bounds a single command's server round trip.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, defaultTimeout)
}

// render writes data to the app writer in the selected format.
func render(c *cli.Context, data any) error {
	return output.NewFormatter(ParseGlobalFlags(c).Output).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
