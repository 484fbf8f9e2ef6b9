package repositories

import (
	"context"
	"time"
)

// Microphone gives access to an audio input device
type Microphone interface {
	// Acquire opens the device. It fails when permission is denied or no device exists.
	Acquire(ctx context.Context) (Recorder, error)
}

// Recorder is an acquired input device producing encoded chunks
type Recorder interface {
	// Start begins capture and calls onData once per timeslice with the bytes recorded
	Start(timeslice time.Duration, onData func(chunk []byte)) error
	// Stop halts capture and releases the device tracks. A recorder may still
	// deliver one buffered chunk asynchronously after Stop returns.
	Stop() error
}

// AudioOutput renders decoded audio
type AudioOutput interface {
	// Play renders mono samples at the given rate and returns once rendering completed
	Play(ctx context.Context, samples []float32, sampleRate int) error
	// Close releases the output device
	Close() error
}
