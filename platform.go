package main

import (
	"context"
	"errors"
)

// ErrMemberUnknown means the platform answered but does not know the user in
// the chat. It is a definite "no", not an outage.
var ErrMemberUnknown = errors.New("user is not known in the chat")

// Platform is the subset of the chat platform the bot talks to.
type Platform interface {
	MemberStatus(ctx context.Context, chat string, userID int64) (string, error)
	// SendText returns the id of the sent message.
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendVideoNote(ctx context.Context, chatID int64, path string, length int) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	DownloadFile(ctx context.Context, fileID, dst string) error
}
