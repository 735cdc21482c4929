// Package counters persists per-line engagement metrics (copies and saves).
package counters

import (
	"context"
	"fmt"
	"time"

	"rizzmate-gateway/internal/metrics"
	"rizzmate-gateway/internal/trending"
)

type Field string

const (
	Copies Field = "copies"
	Saves  Field = "saves"
)

func ParseField(s string) (Field, error) {
	switch Field(s) {
	case Copies, Saves:
		return Field(s), nil
	}
	return "", fmt.Errorf("counters: unknown field %q", s)
}

// Store holds one LineMetric per content id.
type Store interface {
	Read(ctx context.Context) (map[string]trending.LineMetric, error)
	Write(ctx context.Context, all map[string]trending.LineMetric) error

	// Increment adds one to field of id, creating the metric if needed, and
	// sets LastUsedAt to at. It returns the updated metric.
	Increment(ctx context.Context, id string, field Field, at time.Time) (trending.LineMetric, error)
}

// Bump records one engagement event for id.
func Bump(ctx context.Context, s Store, id string, field Field) (trending.LineMetric, error) {
	if id == "" {
		return trending.LineMetric{}, fmt.Errorf("counters: empty id")
	}
	m, err := s.Increment(ctx, id, field, time.Now())
	if err != nil {
		return trending.LineMetric{}, err
	}
	metrics.CounterBumpsTotal.WithLabelValues(string(field)).Inc()
	return m, nil
}

func apply(m trending.LineMetric, field Field, at time.Time) trending.LineMetric {
	switch field {
	case Copies:
		m.Copies++
	case Saves:
		m.Saves++
	}
	m.LastUsedAt = at.UnixMilli()
	return m
}
