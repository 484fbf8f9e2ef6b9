package device

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain/repositories"
)

// Speaker renders segments in real time: Play returns once the segment's
// duration has elapsed. Samples are optionally written to a sink as float32LE.
type Speaker struct {
	logger *zap.Logger

	mu     sync.Mutex
	sink   io.WriteCloser
	writer *bufio.Writer
	closed bool
}

var _ repositories.AudioOutput = (*Speaker)(nil)

// NewSpeaker creates a speaker. When sinkPath is empty audio is only paced.
func NewSpeaker(sinkPath string, logger *zap.Logger) (*Speaker, error) {
	if sinkPath == "" {
		return NewSpeakerWithSink(nil, logger), nil
	}
	f, err := os.Create(sinkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create speaker sink %s: %w", sinkPath, err)
	}
	return NewSpeakerWithSink(f, logger), nil
}

// NewSpeakerWithSink creates a speaker writing to sink, which may be nil
func NewSpeakerWithSink(sink io.WriteCloser, logger *zap.Logger) *Speaker {
	s := &Speaker{logger: logger, sink: sink}
	if sink != nil {
		s.writer = bufio.NewWriter(sink)
	}
	return s
}

// Play renders samples at sampleRate and blocks for their duration
func (s *Speaker) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("speaker closed")
	}
	if s.writer != nil {
		if err := binary.Write(s.writer, binary.LittleEndian, samples); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to write samples: %w", err)
		}
	}
	s.mu.Unlock()

	d := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and closes the sink
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.sink == nil {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		s.sink.Close()
		return fmt.Errorf("failed to flush speaker sink: %w", err)
	}
	s.logger.Debug("Speaker sink closed")
	return s.sink.Close()
}
