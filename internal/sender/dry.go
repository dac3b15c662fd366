package sender

import (
	"context"
	"log/slog"
)

// Dry wraps a Sender for dry runs: deliveries are logged instead of sent,
// reads (Updates, Me) pass through.
type Dry struct {
	Inner  Sender
	Logger *slog.Logger
}

func (d Dry) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Dry) SendSafe(_ context.Context, recipient, text string) bool {
	d.logger().Info("dry-run send", "recipient", recipient, "text", text)
	return true
}

func (d Dry) Updates(ctx context.Context, offset int64) ([]Update, error) {
	if d.Inner == nil {
		return nil, nil
	}
	return d.Inner.Updates(ctx, offset)
}

func (d Dry) Me(ctx context.Context) (*User, error) {
	if d.Inner == nil {
		return &User{Username: "dry-run"}, nil
	}
	return d.Inner.Me(ctx)
}
