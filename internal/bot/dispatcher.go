package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/telemetry/logger"
)

// Messenger sends replies. *Client implements it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64) error
}

// LinkStore is the subset of service.LinkService the bot needs.
type LinkStore interface {
	Insert(ctx context.Context, ref domain.Reference, maxUses int) (string, error)
	Consume(ctx context.Context, token string) (domain.Reference, error)
}

// Reply texts.
const (
	msgInvalidLink = "❌ This link is invalid.\n\n" +
		"The link may not exist, may have expired, or may have been used up."

	msgCopyFailed = "❌ Sorry, I couldn't retrieve the file. This might happen if:\n" +
		"• The original message was deleted\n" +
		"• The channel is private and I don't have access\n" +
		"• I was removed from the channel\n\n" +
		"Please contact the person who shared this link."

	msgForwardNoChat = "⚠️ Please forward a file from a channel.\n\n" +
		"This bot only works with messages forwarded from Telegram channels."

	msgNotChannel = "⚠️ Please forward a file from a channel.\n\n" +
		"The forwarded message must be from a Telegram channel, not from a user or group."

	msgNoMessageID = "❌ Could not process this forwarded message.\n\n" +
		"Please try forwarding the message again."

	msgUnavailable = "⚠️ Something went wrong on our side. Please try again in a moment."
)

// Dispatcher turns updates into link store calls and replies.
type Dispatcher struct {
	api         Messenger
	links       LinkStore
	botUsername string
	ttl         time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. ttl is only used in reply texts.
func NewDispatcher(api Messenger, links LinkStore, botUsername string, ttl time.Duration, logger *slog.Logger) *Dispatcher {
	if botUsername == "" {
		botUsername = domain.DefaultBotUsername
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:         api,
		links:       links,
		botUsername: botUsername,
		ttl:         ttl,
		logger:      logger,
	}
}

// Handle processes one update. Reply failures are logged, never returned,
// so one bad chat cannot stall the update loop.
func (d *Dispatcher) Handle(ctx context.Context, u *Update) {
	m := u.Message
	if m == nil || m.Chat == nil {
		return
	}
	ctx = logger.AppendAttrs(ctx, "update_id", u.UpdateID, "chat_id", m.Chat.ID)

	if cmd, arg, ok := parseCommand(m.Text); ok {
		if cmd == "start" {
			d.handleStart(ctx, m, arg)
		}
		return
	}
	if m.IsForwarded() {
		d.handleForward(ctx, m)
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, m *Message, tok string) {
	chat := m.Chat.ID
	if tok == "" {
		d.reply(ctx, chat, d.welcomeText())
		return
	}

	d.logger.InfoContext(ctx, "received /start with token")
	ref, err := d.links.Consume(ctx, tok)
	switch {
	case errors.Is(err, domain.ErrLinkNotFound):
		d.reply(ctx, chat, msgInvalidLink)
		return
	case err != nil:
		d.logger.ErrorContext(ctx, "consume failed", "error", err)
		d.reply(ctx, chat, msgUnavailable)
		return
	}

	if err := d.api.CopyMessage(ctx, chat, ref.ChatID, ref.MessageID); err != nil {
		d.logger.ErrorContext(ctx, "failed to copy message",
			"from_chat_id", ref.ChatID,
			"message_id", ref.MessageID,
			"error", err)
		d.reply(ctx, chat, msgCopyFailed)
		return
	}
	d.logger.InfoContext(ctx, "copied message", "from_chat_id", ref.ChatID, "message_id", ref.MessageID)
}

func (d *Dispatcher) handleForward(ctx context.Context, m *Message) {
	chat := m.Chat.ID

	src, fromMsg, channel := m.ForwardedChat()
	if src == nil {
		d.reply(ctx, chat, msgForwardNoChat)
		return
	}
	if !channel {
		d.reply(ctx, chat, msgNotChannel)
		return
	}
	fromChat := src.ID
	if fromMsg == 0 {
		d.reply(ctx, chat, msgNoMessageID)
		return
	}

	tok, err := d.links.Insert(ctx, domain.Reference{ChatID: fromChat, MessageID: fromMsg}, domain.Unlimited)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to save link", "from_chat_id", fromChat, "error", err)
		d.reply(ctx, chat, msgUnavailable)
		return
	}

	d.logger.InfoContext(ctx, "generated deep link", "from_chat_id", fromChat, "message_id", fromMsg)
	d.reply(ctx, chat, fmt.Sprintf("✅ Link created successfully!\n\n"+
		"🔗 Share this link:\n%s\n\n"+
		"⏳ Expires after %s\n"+
		"📊 Uses: Unlimited",
		domain.DeepLink(d.botUsername, tok), humanDays(d.ttl)))
}

func (d *Dispatcher) welcomeText() string {
	return "👋 Welcome to the File Link Bot!\n\n" +
		"📝 How to use:\n" +
		"1. Forward a file or media from a Telegram channel to me\n" +
		"2. I'll generate a shareable link for you\n" +
		"3. Anyone with the link can access the file without seeing the original channel\n\n" +
		"⏳ Links expire after " + humanDays(d.ttl) + "."
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.api.SendMessage(ctx, chatID, text); err != nil {
		d.logger.WarnContext(ctx, "failed to send reply", "reply_chat_id", chatID, "error", err)
	}
}

// parseCommand splits "/cmd@bot arg" into its command and first argument.
func parseCommand(text string) (cmd, arg string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg, true
}

func humanDays(ttl time.Duration) string {
	if ttl <= 0 {
		return "a while"
	}
	days := int(ttl / (24 * time.Hour))
	switch {
	case days == 1 && ttl%(24*time.Hour) == 0:
		return "1 day"
	case days >= 1 && ttl%(24*time.Hour) == 0:
		return fmt.Sprintf("%d days", days)
	default:
		return ttl.String()
	}
}
