package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	prefix     = "RCP"
	dayLayout  = "20060102"
	suffixMod  = 1_000_000
	scopeLabel = "receipt:"
)

// Sequencer hands out a strictly increasing counter per scope.
type Sequencer interface {
	NextSequence(ctx context.Context, scope string) (int64, error)
}

type Numberer struct {
	seq     Sequencer
	loc     *time.Location
	log     *zap.Logger
	observe func(err error)

	// lastFallback is the highest millisecond value handed out by the
	// timestamp fallback in this process.
	lastFallback atomic.Int64
}

func NewNumberer(seq Sequencer, loc *time.Location, log *zap.Logger) *Numberer {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Numberer{seq: seq, loc: loc, log: log, observe: func(error) {}}
}

// Observe registers a hook called with nil after every sequencer hit and with
// the cause whenever the timestamp fallback is used. Not safe to call
// concurrently with Next.
func (n *Numberer) Observe(fn func(err error)) {
	if fn != nil {
		n.observe = fn
	}
}

// Next returns RCP-<YYYYMMDD>-<NNNNNN> for the business day containing now.
// The suffix comes from the day's counter; when the sequencer is unavailable
// it degrades to the last six digits of the millisecond timestamp and the
// caller is expected to retry on a uniqueness conflict.
// Fallback values never repeat within one process, even for equal now.
func (n *Numberer) Next(ctx context.Context, now time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	day := now.In(n.loc).Format(dayLayout)

	if n.seq != nil {
		value, err := n.seq.NextSequence(ctx, scopeLabel+day)
		if err == nil && value > 0 {
			n.observe(nil)
			return Format(day, value), nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if err == nil {
			err = fmt.Errorf("sequencer returned %d", value)
		}
		n.observe(err)
		n.log.Warn("receipt sequencer unavailable, using timestamp suffix",
			zap.String("day", day),
			zap.Int64("value", value),
			zap.Error(err),
		)
	}

	return n.Fallback(now), nil
}

// Fallback returns a timestamp-derived receipt number without touching the
// sequencer. Callers use it after a sequencer-issued number collided, for
// example when the counter restarted mid-day.
func (n *Numberer) Fallback(now time.Time) string {
	day := now.In(n.loc).Format(dayLayout)
	return Format(day, n.nextFallback(now.UnixMilli()))
}

func (n *Numberer) nextFallback(millis int64) int64 {
	for {
		last := n.lastFallback.Load()
		next := max(last+1, millis)
		if n.lastFallback.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Format renders a receipt number, keeping the low six digits of value.
func Format(day string, value int64) string {
	if value < 0 {
		value = -value
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, day, value%suffixMod)
}
