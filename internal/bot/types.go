package bot

// Update is one entry of a getUpdates response.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is the subset of a Telegram message the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`

	// Legacy forward fields, still sent alongside ForwardOrigin.
	ForwardFrom          *User `json:"forward_from,omitempty"`
	ForwardFromChat      *Chat `json:"forward_from_chat,omitempty"`
	ForwardFromMessageID int64 `json:"forward_from_message_id,omitempty"`
	ForwardDate          int64 `json:"forward_date,omitempty"`

	ForwardOrigin *MessageOrigin `json:"forward_origin,omitempty"`
}

// MessageOrigin describes where a forwarded message came from.
type MessageOrigin struct {
	Type      string `json:"type"` // user, hidden_user, chat, channel
	Chat      *Chat  `json:"chat,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`

	// SenderChat is set for type "chat" (a group posting as itself).
	SenderChat *Chat `json:"sender_chat,omitempty"`
}

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// IsForwarded reports whether the message was forwarded from anywhere.
func (m *Message) IsForwarded() bool {
	return m.ForwardOrigin != nil || m.ForwardDate != 0 || m.ForwardFrom != nil || m.ForwardFromChat != nil
}

// ForwardedChat returns the chat a forwarded message came from, or nil when
// it came from a user. channel reports whether that chat is a channel.
func (m *Message) ForwardedChat() (c *Chat, messageID int64, channel bool) {
	if o := m.ForwardOrigin; o != nil {
		switch o.Type {
		case ChatChannel:
			return o.Chat, o.MessageID, o.Chat != nil
		case "chat":
			return o.SenderChat, 0, false
		}
		return nil, 0, false
	}
	if c := m.ForwardFromChat; c != nil {
		return c, m.ForwardFromMessageID, c.Type == ChatChannel
	}
	return nil, 0, false
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse[T any] struct {
	OK          bool                `json:"ok"`
	Result      T                   `json:"result"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// messageID is the result of copyMessage.
type messageID struct {
	MessageID int64 `json:"message_id"`
}
