package twitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hububba-utils/internal/monitoring"

	"go.uber.org/zap"
)

// ErrUndeliverable marks announcement failures that retrying cannot fix, such
// as a missing channel. Other Announce errors are retried on the next poll.
var ErrUndeliverable = errors.New("announcement undeliverable")

// StreamSource reports whether a channel is live. A nil stream means offline.
type StreamSource interface {
	LiveStream(ctx context.Context, login string) (*Stream, error)
}

// Notifier receives go-live announcements and operator status lines.
type Notifier interface {
	Announce(ctx context.Context, login string, stream Stream) error
	Status(ctx context.Context, message string)
}

type PollerConfig struct {
	Login          string
	Interval       time.Duration
	HeartbeatEvery int
}

// Poller checks one channel on a fixed interval and announces the
// offline to live edge, including the first live detection after start.
type Poller struct {
	source   StreamSource
	notifier Notifier
	logger   *zap.Logger
	cfg      PollerConfig

	polls         int
	wasLive       bool
	warnedMissing bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller accepts a nil source; the poller then reports the missing
// credentials once and keeps ticking.
func NewPoller(source StreamSource, notifier Notifier, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 5
	}
	return &Poller{
		source:   source,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("starting twitch poller", zap.String("login", p.cfg.Login), zap.Duration("interval", p.cfg.Interval))
	p.notifier.Status(ctx, "🟢 Twitch polling task started.")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop is safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()
		p.logger.Info("twitch poller stopped")
	})
}

func (p *Poller) run(ctx context.Context) {
	p.Poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs a single iteration. Heartbeats go out on polls 1, 1+N, 1+2N, ...
func (p *Poller) Poll(ctx context.Context) {
	p.polls++
	heartbeat := p.polls%p.cfg.HeartbeatEvery == 1 || p.cfg.HeartbeatEvery == 1
	if heartbeat {
		p.notifier.Status(ctx, "🔎 Polling Twitch for live status…")
	}

	if p.source == nil || p.cfg.Login == "" {
		if !p.warnedMissing {
			p.notifier.Status(ctx, "⚠️ Twitch notifications disabled: set TWITCH_CLIENT_ID/SECRET/USERNAME.")
			p.warnedMissing = true
		}
		monitoring.TwitchPolls.WithLabelValues("disabled").Inc()
		return
	}

	stream, err := p.source.LiveStream(ctx, p.cfg.Login)
	if err != nil {
		p.logger.Warn("twitch poll failed", zap.Error(err))
		p.notifier.Status(ctx, fmt.Sprintf("❌ Twitch poll error: `%v`", err))
		monitoring.TwitchPolls.WithLabelValues("error").Inc()
		return
	}

	live := stream != nil
	if live {
		monitoring.TwitchPolls.WithLabelValues("live").Inc()
		p.notifier.Status(ctx, fmt.Sprintf("🟣 Processing: LIVE detected, title='%s', game='%s'.", stream.Title, stream.GameName))
	} else {
		monitoring.TwitchPolls.WithLabelValues("offline").Inc()
		if heartbeat {
			p.notifier.Status(ctx, "🟡 Processing: still offline.")
		}
	}

	if live && !p.wasLive {
		p.notifier.Status(ctx, "📣 Announcing go-live…")
		if err := p.notifier.Announce(ctx, p.cfg.Login, *stream); err != nil {
			p.logger.Error("twitch announce failed", zap.Error(err))
			p.notifier.Status(ctx, fmt.Sprintf("❌ Go-live announcement failed: `%v`", err))
			if !errors.Is(err, ErrUndeliverable) {
				// Still counted as offline, so the next poll announces again.
				return
			}
		} else {
			p.notifier.Status(ctx, "✅ Go-live announcement sent.")
		}
	}
	p.wasLive = live
}
