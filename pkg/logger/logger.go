package logger

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. local/dev get a console encoder at debug
// level; everything else logs JSON. level, when set, overrides the default.
func New(appEnv, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if appEnv == "local" || appEnv == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, eris.Wrap(err, "logger: parse level")
		}
		cfg.Level.SetLevel(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logger: build")
	}
	return l, nil
}

// Install builds the logger and makes it the zap global.
func Install(appEnv, level string) (*zap.Logger, error) {
	l, err := New(appEnv, level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to zap.L().
func From(ctx context.Context) *zap.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// Sync flushes buffered entries. Errors from syncing stdout/stderr are
// expected on some platforms and ignored.
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}
