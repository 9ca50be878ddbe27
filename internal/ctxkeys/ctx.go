package ctxkeys

import (
	"context"

	"github.com/templui/evidencekit/internal/config"
	"github.com/templui/evidencekit/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	SessionKey contextKey = "session"
	ConfigKey  contextKey = "config"
)

// Session returns the caller's session, or the zero (unauthenticated) session.
func Session(ctx context.Context) model.Session {
	session, _ := ctx.Value(SessionKey).(model.Session)
	return session
}

func WithSession(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}
