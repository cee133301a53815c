package redisserver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/pkg/token"
)

// LinkStore is the subset of service.LinkService the commands need.
type LinkStore interface {
	Insert(ctx context.Context, ref domain.Reference, maxUses int) (string, error)
	Consume(ctx context.Context, token string) (domain.Reference, error)
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
	TTL() time.Duration
}

// CommandHandler executes RESP commands against a LinkStore.
type CommandHandler struct {
	links       LinkStore
	adminHash   string
	botUsername string
	logger      *slog.Logger
}

// NewCommandHandler creates a CommandHandler. An empty adminHash disables
// LINK.SWEEP.
func NewCommandHandler(links LinkStore, adminHash, botUsername string, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		links:       links,
		adminHash:   adminHash,
		botUsername: botUsername,
		logger:      logger,
	}
}

// Handle executes one command and writes its reply to conn.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args [][]byte) {
	name := string(bytes.ToUpper(args[0]))
	args = args[1:]

	if conn.limiter != nil && !conn.limiter.Allow() {
		writeDomainError(conn.w, domain.ErrRateLimited)
		return
	}

	switch name {
	case "PING":
		h.ping(conn, args)
	case "AUTH":
		h.auth(conn, args)
	case "QUIT":
		conn.quit = true
		conn.w.simple("OK")
	case "LINK.CREATE":
		h.create(ctx, conn, args)
	case "LINK.CONSUME":
		h.consume(ctx, conn, args)
	case "LINK.DEEPLINK":
		h.deepLink(conn, args)
	case "LINK.SWEEP":
		h.sweep(ctx, conn, args)
	default:
		conn.w.err("ERR unknown command '" + strings.ToLower(name) + "'")
	}
}

func (h *CommandHandler) ping(conn *Conn, args [][]byte) {
	switch len(args) {
	case 0:
		conn.w.simple("PONG")
	case 1:
		conn.w.bulk(string(args[0]))
	default:
		wrongArity(conn, "ping")
	}
}

// auth accepts "AUTH token" and "AUTH user token"; the user name is ignored.
func (h *CommandHandler) auth(conn *Conn, args [][]byte) {
	if len(args) < 1 || len(args) > 2 {
		wrongArity(conn, "auth")
		return
	}
	if h.adminHash == "" {
		conn.w.err("ERR AUTH called without an admin token configured")
		return
	}
	if !token.Verify(string(args[len(args)-1]), h.adminHash) {
		conn.admin = false
		h.logger.Warn("resp auth failed", "remote", conn.netConn.RemoteAddr().String())
		conn.w.err("WRONGPASS invalid admin token")
		return
	}
	conn.admin = true
	conn.w.simple("OK")
}

// LINK.CREATE chat_id message_id [max_uses]
func (h *CommandHandler) create(ctx context.Context, conn *Conn, args [][]byte) {
	if len(args) < 2 || len(args) > 3 {
		wrongArity(conn, "link.create")
		return
	}

	var ref domain.Reference
	var maxUses int64
	var err error
	if ref.ChatID, err = parseInt(args[0], "chat_id"); err != nil {
		writeDomainError(conn.w, err)
		return
	}
	if ref.MessageID, err = parseInt(args[1], "message_id"); err != nil {
		writeDomainError(conn.w, err)
		return
	}
	if len(args) == 3 {
		if maxUses, err = parseInt(args[2], "max_uses"); err != nil {
			writeDomainError(conn.w, err)
			return
		}
	}

	tok, err := h.links.Insert(ctx, ref, int(maxUses))
	if err != nil {
		h.logFailure("link.create", err)
		writeDomainError(conn.w, err)
		return
	}
	conn.w.bulk(tok)
}

// LINK.CONSUME token
func (h *CommandHandler) consume(ctx context.Context, conn *Conn, args [][]byte) {
	if len(args) != 1 {
		wrongArity(conn, "link.consume")
		return
	}

	ref, err := h.links.Consume(ctx, string(args[0]))
	switch {
	case err == nil:
		conn.w.array(2)
		conn.w.integer(ref.ChatID)
		conn.w.integer(ref.MessageID)
	case errors.Is(err, domain.ErrLinkNotFound):
		conn.w.null()
	default:
		h.logFailure("link.consume", err)
		writeDomainError(conn.w, err)
	}
}

// LINK.DEEPLINK token
func (h *CommandHandler) deepLink(conn *Conn, args [][]byte) {
	if len(args) != 1 {
		wrongArity(conn, "link.deeplink")
		return
	}
	tok := string(args[0])
	if !token.IsWellFormed(tok) {
		writeDomainError(conn.w, domain.ErrInvalidArgument.WithDetails("malformed token"))
		return
	}
	conn.w.bulk(domain.DeepLink(h.botUsername, tok))
}

// LINK.SWEEP [ttl_seconds]
func (h *CommandHandler) sweep(ctx context.Context, conn *Conn, args [][]byte) {
	if len(args) > 1 {
		wrongArity(conn, "link.sweep")
		return
	}
	if h.adminHash == "" {
		conn.w.err("NOPERM admin commands are disabled")
		return
	}
	if !conn.admin {
		conn.w.err("NOAUTH Authentication required")
		return
	}

	ttl := h.links.TTL()
	if len(args) == 1 {
		secs, err := parseInt(args[0], "ttl_seconds")
		if err != nil {
			writeDomainError(conn.w, err)
			return
		}
		if ttl, err = domain.TTLFromSeconds(secs); err != nil {
			writeDomainError(conn.w, err)
			return
		}
	}

	n, err := h.links.Sweep(ctx, ttl)
	if err != nil {
		h.logFailure("link.sweep", err)
		writeDomainError(conn.w, err)
		return
	}
	h.logger.Info("links swept", "deleted", n, "ttl", ttl, "via", "resp")
	conn.w.integer(int64(n))
}

func (h *CommandHandler) logFailure(cmd string, err error) {
	if domain.IsDomainError(err, domain.ErrInvalidArgument.Code) {
		return
	}
	h.logger.Error("resp command failed", "command", cmd, "error", err)
}

func parseInt(b []byte, field string) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithDetails(field + " must be an integer")
	}
	return n, nil
}

func wrongArity(conn *Conn, cmd string) {
	conn.w.err("ERR wrong number of arguments for '" + cmd + "' command")
}

// writeDomainError writes "ERR <code> <message>[: details]". Causes are
// never sent to clients.
func writeDomainError(w replyWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		w.err("ERR " + domain.ErrInternalServer.Code + " " + domain.ErrInternalServer.Message)
		return
	}
	msg := "ERR " + de.Code + " " + de.Message
	if de.Details != "" {
		msg += ": " + de.Details
	}
	w.err(strings.ReplaceAll(msg, "\r\n", " "))
}
