package audio

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain/repositories"
	"github.com/satriahrh/arunika/client/internal/metrics"
)

const (
	// DefaultChunkInterval is how often the recorder hands over a chunk
	DefaultChunkInterval = 100 * time.Millisecond

	// DefaultStopCooldown is how long chunks stay suppressed after a stop
	DefaultStopCooldown = 2 * time.Second
)

// DeviceAccessError is returned when the microphone cannot be acquired or started
type DeviceAccessError struct {
	Err error
}

func (e *DeviceAccessError) Error() string {
	return "microphone unavailable: " + e.Err.Error()
}

func (e *DeviceAccessError) Unwrap() error {
	return e.Err
}

// ChunkSender delivers capture frames to the agent
type ChunkSender interface {
	// SendAudioChunk sends one base64 encoded chunk
	SendAudioChunk(base64Audio string) error
	// SendAudioFinal sends the end of utterance marker
	SendAudioFinal()
}

// CaptureConfig holds the capture timings
type CaptureConfig struct {
	ChunkInterval time.Duration
	StopCooldown  time.Duration
}

// CapturePipeline records microphone input and streams it as audio frames
type CapturePipeline struct {
	mic     repositories.Microphone
	sender  ChunkSender
	config  CaptureConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	recorder  repositories.Recorder
	recording bool
	starting  bool
	cooldown  *time.Timer

	// sendMu orders chunk sends against the finality marker
	sendMu   sync.Mutex
	stopping atomic.Bool
}

// NewCapturePipeline creates a pipeline reading from mic and sending through sender
func NewCapturePipeline(mic repositories.Microphone, sender ChunkSender, config CaptureConfig, m *metrics.Metrics, logger *zap.Logger) *CapturePipeline {
	if config.ChunkInterval <= 0 {
		config.ChunkInterval = DefaultChunkInterval
	}
	if config.StopCooldown <= 0 {
		config.StopCooldown = DefaultStopCooldown
	}
	return &CapturePipeline{
		mic:     mic,
		sender:  sender,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

// StartRecording acquires the microphone and starts streaming chunks.
// On failure a *DeviceAccessError is returned and nothing changes.
func (p *CapturePipeline) StartRecording(ctx context.Context) error {
	p.mu.Lock()
	if p.recording || p.starting {
		p.mu.Unlock()
		return nil
	}
	p.starting = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.starting = false
		p.mu.Unlock()
	}()

	recorder, err := p.mic.Acquire(ctx)
	if err != nil {
		p.metrics.DeviceError()
		p.logger.Error("Error accessing microphone", zap.Error(err))
		return &DeviceAccessError{Err: err}
	}

	if err := recorder.Start(p.config.ChunkInterval, p.handleChunk); err != nil {
		p.metrics.DeviceError()
		p.logger.Error("Error starting recorder", zap.Error(err))
		if stopErr := recorder.Stop(); stopErr != nil {
			p.logger.Warn("Failed to release recorder", zap.Error(stopErr))
		}
		return &DeviceAccessError{Err: err}
	}

	p.mu.Lock()
	p.recorder = recorder
	p.recording = true
	p.mu.Unlock()

	p.logger.Info("Recording started", zap.Duration("chunkInterval", p.config.ChunkInterval))
	return nil
}

// StopRecording stops the recorder and sends the end of utterance marker.
// Chunks the recorder still flushes afterwards are discarded until the
// cooldown elapses. It returns false if nothing was recording.
func (p *CapturePipeline) StopRecording() bool {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return false
	}
	recorder := p.recorder
	p.recorder = nil
	p.recording = false
	p.mu.Unlock()

	// suppress before stopping; the recorder may flush its last chunk from Stop
	p.sendMu.Lock()
	p.stopping.Store(true)
	p.sendMu.Unlock()

	if err := recorder.Stop(); err != nil {
		p.logger.Warn("Failed to stop recorder", zap.Error(err))
	}

	p.sendMu.Lock()
	p.sender.SendAudioFinal()
	p.sendMu.Unlock()

	// TODO: clear the flag on an end-of-stream signal from the recorder instead of a timer
	p.mu.Lock()
	if p.cooldown != nil {
		p.cooldown.Stop()
	}
	p.cooldown = time.AfterFunc(p.config.StopCooldown, func() {
		p.stopping.Store(false)
	})
	p.mu.Unlock()

	p.logger.Info("Recording stopped")
	return true
}

// Recording reports whether a recorder is attached
func (p *CapturePipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// Stopping reports whether chunks are currently being suppressed
func (p *CapturePipeline) Stopping() bool {
	return p.stopping.Load()
}

// Close releases the recorder without sending a marker
func (p *CapturePipeline) Close() error {
	p.mu.Lock()
	recorder := p.recorder
	p.recorder = nil
	p.recording = false
	if p.cooldown != nil {
		p.cooldown.Stop()
	}
	p.mu.Unlock()

	p.stopping.Store(true)
	if recorder != nil {
		return recorder.Stop()
	}
	return nil
}

func (p *CapturePipeline) handleChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	encoded := base64.StdEncoding.EncodeToString(chunk)

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if p.stopping.Load() {
		p.metrics.ChunkDiscarded()
		p.logger.Debug("Discarded audio chunk after stop", zap.Int("size", len(chunk)))
		return
	}

	if err := p.sender.SendAudioChunk(encoded); err != nil {
		p.metrics.FrameDropped("capture_not_open")
		p.logger.Debug("Dropped audio chunk", zap.Int("size", len(chunk)), zap.Error(err))
		return
	}
	p.metrics.ChunkSent(len(chunk))
}
