package events

import (
	"context"
	"time"

	"invoice-backend/internal/records"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

// DefaultInterval is the poll period when Stream.Interval is unset.
const DefaultInterval = time.Second

// Source is the read side of the record store that a stream polls.
type Source interface {
	IDs(ctx context.Context) ([]int64, error)
	List(ctx context.Context) ([]records.Record, error)
}

// Frame is one emission: either a full snapshot or an inline error.
type Frame struct {
	Records []records.RecordResponse
	Err     string
}

// Stream emits a full snapshot on subscribe and again whenever the set of
// stored record IDs changes. Each Run call keeps its own state.
type Stream struct {
	Source   Source
	Interval time.Duration
	// Subscriber tags log lines; optional.
	Subscriber string
}

// Run blocks until ctx is done or emit fails. Poll failures are reported as
// error frames and never end the stream. Cancellation returns nil.
func (s *Stream) Run(ctx context.Context, emit func(Frame) error) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	last, ok, err := s.snapshot(ctx, emit)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ids, err := s.Source.IDs(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err := s.pollFailed(err, emit); err != nil {
				return err
			}
			continue
		}
		if ok && sameSet(last, ids) {
			continue
		}

		next, snapOK, err := s.snapshot(ctx, emit)
		if err != nil {
			return err
		}
		if snapOK {
			last, ok = next, true
		}
	}
}

// snapshot lists every record and emits it. The returned ID set is exactly
// what was emitted; ok is false when listing failed and an error frame went out.
func (s *Stream) snapshot(ctx context.Context, emit func(Frame) error) (map[int64]struct{}, bool, error) {
	recs, err := s.Source.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, nil
		}
		return nil, false, s.pollFailed(err, emit)
	}

	set := make(map[int64]struct{}, len(recs))
	for _, rec := range recs {
		set[rec.ID] = struct{}{}
	}
	if err := emit(Frame{Records: records.ToResponses(recs)}); err != nil {
		return nil, false, err
	}
	metrics.IncSnapshots()
	telemetry.Debug("events.snapshot", map[string]any{
		"subscriber": s.Subscriber,
		"records":    len(recs),
	})
	return set, true, nil
}

func (s *Stream) pollFailed(cause error, emit func(Frame) error) error {
	metrics.IncPollFailures()
	telemetry.Warn("events.poll_failed", map[string]any{
		"subscriber": s.Subscriber,
		"err":        cause,
	})
	return emit(Frame{Err: "stream error"})
}

func sameSet(known map[int64]struct{}, ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == len(known)
}
