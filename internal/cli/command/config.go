package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filelink-go/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the CLI config file",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective settings",
				Action: configShow,
			},
			{
				Name:   "save",
				Usage:  "Write the effective settings to the config file",
				Action: configSave,
			},
		},
	}
}

func effectiveConfig(c *cli.Context) *config.CLIConfig {
	flags := ParseGlobalFlags(c)
	return &config.CLIConfig{
		Server:     flags.Server,
		AdminToken: flags.AdminToken,
		Output:     string(flags.Output),
	}
}

func configShow(c *cli.Context) error {
	cfg := effectiveConfig(c)
	if cfg.AdminToken != "" {
		cfg.AdminToken = "********"
	}
	return render(c, cfg)
}

func configSave(c *cli.Context) error {
	path := ParseGlobalFlags(c).ConfigPath
	if err := config.Save(effectiveConfig(c), path); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "saved %s\n", path)
	return nil
}
