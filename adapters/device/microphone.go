package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain/repositories"
)

// RawSampleRate is assumed for input files without a WAV header
const RawSampleRate = 16000

var (
	// ErrNoInputDevice is returned when no microphone source is configured
	ErrNoInputDevice = errors.New("no input device configured")

	errRecorderStarted = errors.New("recorder already started")
)

// FileMicrophone plays a PCM16 mono file as if it were spoken into a microphone.
// WAV files are decoded; anything else is treated as raw PCM at RawSampleRate.
type FileMicrophone struct {
	path   string
	logger *zap.Logger
}

var _ repositories.Microphone = (*FileMicrophone)(nil)

// NewFileMicrophone creates a microphone reading from path
func NewFileMicrophone(path string, logger *zap.Logger) *FileMicrophone {
	return &FileMicrophone{path: path, logger: logger}
}

// Acquire opens the source file and returns an idle recorder over it
func (m *FileMicrophone) Acquire(ctx context.Context) (repositories.Recorder, error) {
	if m.path == "" {
		return nil, ErrNoInputDevice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input %s: %w", m.path, err)
	}

	pcm, rate := data, RawSampleRate
	if IsWAV(data) {
		pcm, rate, err = DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode input %s: %w", m.path, err)
		}
	}

	m.logger.Debug("Microphone acquired",
		zap.String("path", m.path),
		zap.Int("sampleRate", rate),
		zap.Int("size", len(pcm)))

	return &fileRecorder{
		pcm:        pcm,
		sampleRate: rate,
		stop:       make(chan struct{}),
		logger:     m.logger,
	}, nil
}

// fileRecorder emits one timeslice of audio per tick, in real time. After Stop
// it delivers the partially filled slice once, the way a recorder flushes its
// buffer, and then goes quiet.
type fileRecorder struct {
	pcm        []byte
	sampleRate int
	logger     *zap.Logger

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *fileRecorder) Start(timeslice time.Duration, onData func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errRecorderStarted
	}
	if timeslice <= 0 {
		return fmt.Errorf("invalid timeslice %v", timeslice)
	}
	r.started = true

	chunkSize := int(int64(r.sampleRate) * int64(timeslice) / int64(time.Second) * 2)
	if chunkSize < 2 {
		chunkSize = 2
	}
	go r.run(timeslice, chunkSize, onData)
	return nil
}

func (r *fileRecorder) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

func (r *fileRecorder) run(timeslice time.Duration, chunkSize int, onData func([]byte)) {
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	offset := 0
	next := func(size int) []byte {
		if offset >= len(r.pcm) {
			return nil
		}
		end := offset + size
		if end > len(r.pcm) {
			end = len(r.pcm)
		}
		chunk := r.pcm[offset:end]
		offset = end
		return chunk
	}

	for {
		select {
		case <-ticker.C:
			if chunk := next(chunkSize); chunk != nil {
				onData(chunk)
			}
		case <-r.stop:
			if chunk := next(flushSize(chunkSize)); chunk != nil {
				onData(chunk)
			}
			r.logger.Debug("Recorder stopped", zap.Int("remaining", len(r.pcm)-offset))
			return
		}
	}
}

// flushSize is half a timeslice, rounded down to whole samples
func flushSize(chunkSize int) int {
	if n := (chunkSize / 2) &^ 1; n > 0 {
		return n
	}
	return 2
}
