package receipt

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receiptPattern = regexp.MustCompile(`^RCP-\d{8}-\d{6}$`)

type counterSequencer struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (c *counterSequencer) NextSequence(_ context.Context, scope string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.values == nil {
		c.values = map[string]int64{}
	}
	c.values[scope]++
	return c.values[scope], nil
}

func TestNextUsesDailyCounter(t *testing.T) {
	n := NewNumberer(&counterSequencer{}, time.UTC, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	second, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	nextDay, err := n.Next(context.Background(), now.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "RCP-20240501-000001", first)
	assert.Equal(t, "RCP-20240501-000002", second)
	assert.Equal(t, "RCP-20240502-000001", nextDay)
}

func TestNextUsesBusinessTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	n := NewNumberer(&counterSequencer{}, loc, nil)

	got, err := n.Next(context.Background(), time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "RCP-20240502-000001", got)
}

func TestNextFallsBackToTimestamp(t *testing.T) {
	n := NewNumberer(&counterSequencer{err: errors.New("redis down")}, time.UTC, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 123_000_000, time.UTC)

	got, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	assert.Regexp(t, receiptPattern, got)
	assert.Equal(t, Format("20240501", now.UnixMilli()), got)
}

func TestFallbackNeverRepeatsForSameInstant(t *testing.T) {
	n := NewNumberer(&counterSequencer{err: errors.New("redis down")}, time.UTC, nil)
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	first, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	second, err := n.Next(context.Background(), now)
	require.NoError(t, err)
	third := n.Fallback(now)

	assert.Equal(t, Format("20240501", now.UnixMilli()), first)
	assert.Equal(t, Format("20240501", now.UnixMilli()+1), second)
	assert.Equal(t, Format("20240501", now.UnixMilli()+2), third)
}

func TestFallbackSkipsSequencer(t *testing.T) {
	seq := &counterSequencer{}
	n := NewNumberer(seq, time.UTC, nil)
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, Format("20240501", now.UnixMilli()), n.Fallback(now))
	assert.Empty(t, seq.values)
}

func TestNextConcurrentCallsAreUnique(t *testing.T) {
	n := NewNumberer(&counterSequencer{}, time.UTC, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := n.Next(context.Background(), now)
			assert.NoError(t, err)
			mu.Lock()
			seen[got] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 200)
}

func TestNextHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNumberer(&counterSequencer{}, time.UTC, nil).Next(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatPadsSuffix(t *testing.T) {
	assert.Equal(t, "RCP-20240501-000042", Format("20240501", 42))
	assert.Equal(t, "RCP-20240501-234567", Format("20240501", 1_234_567))
}

func TestObserveReportsSequencerHealth(t *testing.T) {
	seq := &counterSequencer{}
	n := NewNumberer(seq, time.UTC, nil)
	var seen []error
	n.Observe(func(err error) { seen = append(seen, err) })

	_, err := n.Next(context.Background(), time.Now())
	require.NoError(t, err)
	seq.err = errors.New("redis down")
	_, err = n.Next(context.Background(), time.Now())
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.NoError(t, seen[0])
	assert.EqualError(t, seen[1], "redis down")
}
