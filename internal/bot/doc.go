// Package bot is the Telegram front end of FileLink.
//
// A Poller long-polls getUpdates and hands each update to a Dispatcher.
// Forwarding a channel post to the bot stores an unlimited link to it and
// replies with a https://t.me/<bot>?start=<token> deep link; opening that
// link sends "/start <token>", which consumes the token and copies the
// original post into the requester's chat.
package bot
