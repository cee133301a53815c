package command

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filelink-go/internal/cli/connection"
)

type createLinkRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
	MaxUses   int   `json:"max_uses"`
}

type createLinkResult struct {
	Token    string `json:"token"`
	DeepLink string `json:"deep_link"`
	MaxUses  int    `json:"max_uses"`
}

type consumeLinkResult struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// LinkCommand returns the link subcommand group.
func LinkCommand() *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Create and redeem file links",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Store a message reference and print its deep link",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "chat-id", Usage: "source chat ID", Required: true},
					&cli.Int64Flag{Name: "message-id", Usage: "source message ID", Required: true},
					&cli.IntFlag{Name: "max-uses", Usage: "redemptions allowed (0 = unlimited)"},
				},
				Action: linkCreate,
			},
			{
				Name:      "consume",
				Usage:     "Redeem a token once and print the message it refers to",
				ArgsUsage: "TOKEN",
				Action:    linkConsume,
			},
			{
				Name:      "qr",
				Usage:     "Download the QR code PNG for a token's deep link",
				ArgsUsage: "TOKEN",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "output path (default TOKEN.png)"},
					&cli.IntFlag{Name: "size", Usage: "image size in pixels", Value: 256},
				},
				Action: linkQR,
			},
		},
	}
}

func linkCreate(c *cli.Context) error {
	if c.Int("max-uses") < 0 {
		return fmt.Errorf("--max-uses must be >= 0")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := EnsureConnected(c).Post(ctx, "/api/v1/links", createLinkRequest{
		ChatID:    c.Int64("chat-id"),
		MessageID: c.Int64("message-id"),
		MaxUses:   c.Int("max-uses"),
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result createLinkResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return render(c, result)
}

func linkConsume(c *cli.Context) error {
	token, err := tokenArg(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := EnsureConnected(c).Post(ctx, "/api/v1/links/"+url.PathEscape(token)+"/consume", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result consumeLinkResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return render(c, result)
}

func linkQR(c *cli.Context) error {
	token, err := tokenArg(c)
	if err != nil {
		return err
	}

	path := c.String("file")
	if path == "" {
		path = token + ".png"
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	endpoint := "/api/v1/links/" + url.PathEscape(token) + "/qr.png?size=" + strconv.Itoa(c.Int("size"))
	resp, err := EnsureConnected(c).Get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	png, err := connection.ReadBody(resp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(writer(c), "wrote %s (%d bytes)\n", path, len(png))
	return nil
}

func tokenArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one TOKEN argument")
	}
	return c.Args().First(), nil
}
