package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/soltrade/service/ledger"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification is the user-facing outcome of one trade.
type Notification struct {
	Level   string
	Message string
	Record  ledger.Record
}

// Notifier delivers trade outcomes to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs each outcome.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	level := slog.LevelInfo
	if note.Level == LevelError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, note.Message,
		"trade_id", note.Record.ID,
		"status", string(note.Record.Status),
		"reason", note.Record.Reason,
		"signature", note.Record.Signature,
	)
}

// notificationFor builds the message shown for a finished trade.
func notificationFor(rec ledger.Record, err error) Notification {
	if err == nil {
		return Notification{
			Level:   LevelSuccess,
			Message: fmt.Sprintf("%s %s %s successfully!", rec.Direction.Verb(), rec.Amount.String(), rec.TokenSymbol),
			Record:  rec,
		}
	}
	return Notification{
		Level:   LevelError,
		Message: "Trade failed: " + UserMessage(err),
		Record:  rec,
	}
}
