package websocket

import (
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain"
	"github.com/satriahrh/arunika/client/domain/repositories"
	"github.com/satriahrh/arunika/client/internal/audio"
	"github.com/satriahrh/arunika/client/internal/metrics"
	"github.com/satriahrh/arunika/client/internal/session"
	"github.com/satriahrh/arunika/client/internal/state"
)

// SegmentQueue accepts decoded audio for playback
type SegmentQueue interface {
	Enqueue(seg audio.Segment) bool
}

// Dispatcher routes inbound frames to the state they mutate
type Dispatcher struct {
	store      *state.Store
	correlator *session.Correlator
	playback   SegmentQueue
	sampleRate int
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

var _ repositories.FrameHandler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Binary frames are decoded at sampleRate.
func NewDispatcher(
	store *state.Store,
	correlator *session.Correlator,
	playback SegmentQueue,
	sampleRate int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if sampleRate <= 0 {
		sampleRate = domain.PlaybackSampleRate
	}
	return &Dispatcher{
		store:      store,
		correlator: correlator,
		playback:   playback,
		sampleRate: sampleRate,
		logger:     logger,
		metrics:    m,
	}
}

// HandleText decodes and dispatches a structured frame. Malformed frames are dropped.
func (d *Dispatcher) HandleText(payload []byte) {
	d.handle(websocket.TextMessage, payload)
}

// HandleBinary dispatches a binary audio frame
func (d *Dispatcher) HandleBinary(payload []byte) {
	d.handle(websocket.BinaryMessage, payload)
}

func (d *Dispatcher) handle(messageType int, payload []byte) {
	frame, err := DecodeInbound(messageType, payload)
	if err != nil {
		d.metrics.FrameDropped("malformed")
		d.logger.Warn("Non-JSON message", zap.Int("size", len(payload)), zap.Error(err))
		return
	}
	d.Dispatch(frame)
}

// Dispatch applies the effect of one decoded frame
func (d *Dispatcher) Dispatch(frame InboundFrame) {
	switch f := frame.(type) {
	case *AudioFrame:
		d.metrics.FrameReceived("binary")
		d.handleAudio(f)

	case *SessionsFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.store.SetSessions(f.Sessions)

	case *UUIDFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.correlator.Assign(f.UUID)
		d.store.AssignSession(f.UUID)
		d.logger.Info("Session assigned", zap.String("sessionID", f.UUID))

	case *TranscriptsFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.store.SetTranscripts(f.SessionID, f.Transcripts)
		d.logger.Debug("Transcripts received",
			zap.String("sessionID", f.SessionID),
			zap.Int("entries", len(f.Transcripts)))

	case *TranscriptItemFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.handleTranscriptItem(f)

	case *TTSStartFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.store.SetStreaming(true)

	case *TTSStopFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.store.SetStreaming(false)

	case *TTSChunkFrame:
		d.metrics.FrameReceived(string(f.frameType()))

	case *SessionDeletedFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.store.RemoveSession(f.ID)
		d.logger.Info("Session deleted", zap.String("sessionID", f.ID))

	case *ServerErrorFrame:
		d.metrics.FrameReceived(string(f.frameType()))
		d.logger.Warn("Agent reported an error", zap.String("message", f.Message))

	case *UnknownFrame:
		d.metrics.FrameDropped("unknown_type")
		d.logger.Info("Unhandled message type", zap.String("type", string(f.Type)))

	default:
		d.logger.Warn("Unsupported frame", zap.Any("frame", frame))
	}
}

func (d *Dispatcher) handleAudio(f *AudioFrame) {
	if len(f.PCM)%2 != 0 {
		d.logger.Warn("Audio frame has a trailing byte", zap.Int("size", len(f.PCM)))
	}
	seg := audio.NewSegment(f.PCM, d.sampleRate)
	if !d.playback.Enqueue(seg) {
		d.metrics.FrameDropped("playback_closed")
		d.logger.Debug("Playback closed, dropped audio frame", zap.Int("size", len(f.PCM)))
	}
}

func (d *Dispatcher) handleTranscriptItem(f *TranscriptItemFrame) {
	switch {
	case f.ResponseOnly():
		if err := d.store.ApplyResponse(*f.Response); err != nil {
			d.logger.Warn("Response without a pending query", zap.Error(err))
		}
	case f.Item != nil:
		d.store.AppendEntry(f.Item.Query, f.Item.Response)
	default:
		d.store.SetThinking(false)
		d.logger.Warn("Transcript item without content")
	}
}
