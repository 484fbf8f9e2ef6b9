package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func buildWAV(t *testing.T, samples []int16, sampleRate int) []byte {
	t.Helper()
	dataSize := uint32(len(samples) * 2)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("Failed to write WAV header: %v", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		t.Fatalf("Failed to write samples: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	wav := buildWAV(t, []int16{0, 16384, -32768}, 8000)

	pcm, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected 8000Hz, got %d", rate)
	}
	if !bytes.Equal(pcm, []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80}) {
		t.Errorf("Unexpected PCM payload %v", pcm)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	stereo := buildWAV(t, []int16{1, 2}, 8000)
	binary.LittleEndian.PutUint16(stereo[22:24], 2)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not riff", data: []byte("hello world, this is not audio")},
		{name: "truncated", data: []byte("RIFF\x00\x00\x00\x00WAVE")},
		{name: "stereo", data: stereo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestFileMicrophone_NoSource(t *testing.T) {
	mic := NewFileMicrophone("", zap.NewNop())

	if _, err := mic.Acquire(context.Background()); !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("Expected ErrNoInputDevice, got %v", err)
	}

	mic = NewFileMicrophone(filepath.Join(t.TempDir(), "missing.wav"), zap.NewNop())
	if _, err := mic.Acquire(context.Background()); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestFileMicrophone_EmitsChunks(t *testing.T) {
	// 100ms of 8kHz audio per 10ms slice gives 10 chunks of 160 bytes
	samples := make([]int16, 800)
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, buildWAV(t, samples, 8000), 0o600); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	recorder, err := NewFileMicrophone(path, zap.NewNop()).Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var mu sync.Mutex
	var chunks [][]byte
	if err := recorder.Start(10*time.Millisecond, func(b []byte) {
		mu.Lock()
		chunks = append(chunks, b)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := recorder.Start(10*time.Millisecond, func([]byte) {}); err == nil {
		t.Error("Starting twice should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(chunks)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Recorder did not emit chunks")
		}
		time.Sleep(5 * time.Millisecond)
	}
	recorder.Stop()
	recorder.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(chunks[0]) != 160 {
		t.Errorf("Expected 160 byte chunks, got %d", len(chunks[0]))
	}
}

func TestSpeaker_PacesAndWritesSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.f32")
	speaker, err := NewSpeaker(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSpeaker() error = %v", err)
	}

	samples := make([]float32, 441) // 10ms at 44100Hz
	samples[0] = 0.5
	start := time.Now()
	if err := speaker.Play(context.Background(), samples, 44100); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Play returned after %v, expected at least 10ms", elapsed)
	}

	if err := speaker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := speaker.Play(context.Background(), samples, 44100); err == nil {
		t.Error("Play after Close should fail")
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read sink: %v", err)
	}
	if len(written) != len(samples)*4 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*4, len(written))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(written[0:4])); got != 0.5 {
		t.Errorf("Expected first sample 0.5, got %v", got)
	}
}

func TestSpeaker_CancelledPlay(t *testing.T) {
	speaker := NewSpeakerWithSink(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := speaker.Play(ctx, make([]float32, 44100), 44100)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
