package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Stream selects the log channel an entry is mirrored to.
type Stream string

const (
	StreamGeneral Stream = "general"
	StreamBot     Stream = "bot"
	StreamTickets Stream = "tickets"
)

type Entry struct {
	Stream    Stream
	Level     string
	GuildID   string
	UserID    string
	Event     string
	Details   string
	CreatedAt time.Time
}

type Logger struct {
	logger *zap.Logger
	mu     sync.RWMutex
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = notify
}

// Log writes a structured entry and mirrors Details to the stream's channel.
func (l *Logger) Log(ctx context.Context, stream Stream, level, guildID, userID, event, details string) {
	entry := Entry{
		Stream:    stream,
		Level:     level,
		GuildID:   guildID,
		UserID:    userID,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}

	l.logger.Log(zapLevel(level), "audit",
		zap.String("stream", string(stream)),
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	)

	l.mu.RLock()
	notify := l.notify
	l.mu.RUnlock()
	if notify != nil {
		notify(ctx, entry)
	}
}

func (l *Logger) General(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, StreamGeneral, LevelInfo, guildID, userID, event, details)
}

func (l *Logger) Bot(ctx context.Context, level, guildID, event, details string) {
	l.Log(ctx, StreamBot, level, guildID, "", event, details)
}

func (l *Logger) Tickets(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, StreamTickets, LevelInfo, guildID, userID, event, details)
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case LevelCrit:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
