package storage

import (
	"context"
	"errors"

	"hububba-utils/internal/monitoring"

	"github.com/prometheus/client_golang/prometheus"
)

type instrumented struct {
	next   OrderStore
	driver string
}

// Instrument records latency and outcome of every call to next.
func Instrument(next OrderStore, driver string) OrderStore {
	return &instrumented{next: next, driver: driver}
}

func (s *instrumented) observe(op string) func(error) {
	t := prometheus.NewTimer(monitoring.StoreLatency.WithLabelValues(s.driver, op))
	return func(err error) {
		t.ObserveDuration()
		result := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			result = "not_found"
		case err != nil:
			result = "error"
		}
		monitoring.StoreTotalRequests.WithLabelValues(s.driver, op, result).Inc()
	}
}

func (s *instrumented) Create(ctx context.Context, order *Order) (err error) {
	done := s.observe("create")
	defer func() { done(err) }()
	return s.next.Create(ctx, order)
}

func (s *instrumented) Get(ctx context.Context, id int64) (_ Order, err error) {
	done := s.observe("get")
	defer func() { done(err) }()
	return s.next.Get(ctx, id)
}

func (s *instrumented) List(ctx context.Context) (_ []Order, err error) {
	done := s.observe("list")
	defer func() { done(err) }()
	return s.next.List(ctx)
}

func (s *instrumented) Update(ctx context.Context, order Order) (err error) {
	done := s.observe("update")
	defer func() { done(err) }()
	return s.next.Update(ctx, order)
}

func (s *instrumented) FindByChannel(ctx context.Context, channelID string) (_ Order, err error) {
	done := s.observe("find_by_channel")
	defer func() { done(err) }()
	return s.next.FindByChannel(ctx, channelID)
}

func (s *instrumented) Ping(ctx context.Context) (err error) {
	done := s.observe("ping")
	defer func() { done(err) }()
	return s.next.Ping(ctx)
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
