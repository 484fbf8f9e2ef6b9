package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain/repositories"
	"github.com/satriahrh/arunika/client/internal/metrics"
)

// PlaybackQueue plays segments back to back through one audio output.
// At most one segment renders at a time, in arrival order, and the next
// segment starts as soon as the previous render returns.
type PlaybackQueue struct {
	output  repositories.AudioOutput
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	queue   []Segment
	playing bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlaybackQueue creates an idle queue rendering through output
func NewPlaybackQueue(output repositories.AudioOutput, m *metrics.Metrics, logger *zap.Logger) *PlaybackQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackQueue{
		output:  output,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue appends seg to the tail and starts the driver if it is idle.
// It returns false once the queue has been closed.
func (q *PlaybackQueue) Enqueue(seg Segment) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.queue = append(q.queue, seg)
	q.metrics.SetQueueDepth(len(q.queue))
	q.logger.Debug("Added audio to queue", zap.Int("queueLength", len(q.queue)))

	if !q.playing {
		q.playing = true
		q.wg.Add(1)
		go q.drive()
	}
	return true
}

// Len returns the number of segments waiting to be rendered
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Playing reports whether the driver is currently running
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

func (q *PlaybackQueue) drive() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.closed || len(q.queue) == 0 {
			q.playing = false
			q.mu.Unlock()
			return
		}
		seg := q.queue[0]
		q.queue[0] = Segment{}
		q.queue = q.queue[1:]
		q.metrics.SetQueueDepth(len(q.queue))
		q.mu.Unlock()

		if err := q.output.Play(q.ctx, seg.Samples, seg.SampleRate); err != nil {
			q.logger.Warn("Failed to play audio segment",
				zap.Int("samples", len(seg.Samples)),
				zap.Error(err))
			continue
		}
		q.metrics.SegmentPlayed(seg.Duration().Seconds())
	}
}

// Close abandons queued segments, waits for the driver and releases the output
func (q *PlaybackQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.queue = nil
	q.metrics.SetQueueDepth(0)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return q.output.Close()
}
