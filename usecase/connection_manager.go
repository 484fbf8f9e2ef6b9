package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain"
	"github.com/satriahrh/arunika/client/domain/repositories"
	"github.com/satriahrh/arunika/client/internal/audio"
	"github.com/satriahrh/arunika/client/internal/metrics"
	"github.com/satriahrh/arunika/client/internal/session"
	"github.com/satriahrh/arunika/client/internal/state"
	"github.com/satriahrh/arunika/client/internal/websocket"
)

// ErrDeleteLiveSession is returned when asked to delete the session the agent is talking in
var ErrDeleteLiveSession = errors.New("cannot delete the live session")

// ManagerConfig holds the tunables of a connection manager
type ManagerConfig struct {
	Capture    audio.CaptureConfig
	SampleRate int
}

// ConnectionManager is the single entry point of the client. It owns the
// transport, the audio pipelines and the shared state.
type ConnectionManager struct {
	transport  repositories.Transport
	dispatcher *websocket.Dispatcher
	correlator *session.Correlator
	store      *state.Store
	playback   *audio.PlaybackQueue
	capture    *audio.CapturePipeline

	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ audio.ChunkSender = (*ConnectionManager)(nil)

// NewConnectionManager wires a manager around an unconnected transport
func NewConnectionManager(
	transport repositories.Transport,
	mic repositories.Microphone,
	output repositories.AudioOutput,
	config ManagerConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ConnectionManager {
	if config.SampleRate <= 0 {
		config.SampleRate = domain.PlaybackSampleRate
	}

	store := state.NewStore()
	correlator := session.NewCorrelator()
	playback := audio.NewPlaybackQueue(output, m, logger.Named("playback"))

	cm := &ConnectionManager{
		transport:  transport,
		correlator: correlator,
		store:      store,
		playback:   playback,
		logger:     logger,
	}
	cm.dispatcher = websocket.NewDispatcher(store, correlator, playback, config.SampleRate, m, logger.Named("dispatcher"))
	cm.capture = audio.NewCapturePipeline(mic, cm, config.Capture, m, logger.Named("capture"))

	transport.OnStateChange(func(s repositories.TransportState) {
		store.SetConnection(s.String())
	})
	return cm
}

// Start requests the session list and connects to the agent. The request is
// queued and delivered once the connection opens.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	cm.RequestSessions()
	if err := cm.transport.Connect(ctx, cm.dispatcher); err != nil {
		return fmt.Errorf("failed to start connection: %w", err)
	}
	return nil
}

// State returns the shared state
func (cm *ConnectionManager) State() *state.Store {
	return cm.store
}

// SendText sends a user text turn to the live session. It is shown immediately
// as a pending entry, switching the view back to the live session if needed.
// Blank input is ignored.
func (cm *ConnectionManager) SendText(text string) {
	content := strings.TrimSpace(text)
	if content == "" {
		return
	}
	if sessions := cm.store.Sessions(); !sessions.ViewingLive() {
		// the agent answers in the live session, so show it again
		cm.store.ViewSession(sessions.Live)
		cm.logger.Debug("Returned to the live session",
			zap.String("viewing", sessions.Viewed),
			zap.String("sessionID", sessions.Live))
	}
	cm.store.AppendQuery(content)
	cm.sendGuaranteed(websocket.NewTextFrame(content))
}

// StartRecording starts streaming the microphone. When the device cannot be
// used a *audio.DeviceAccessError is returned and recording does not start.
func (cm *ConnectionManager) StartRecording(ctx context.Context) error {
	if err := cm.capture.StartRecording(ctx); err != nil {
		return err
	}
	cm.store.SetRecording(cm.capture.Recording())
	return nil
}

// StopRecording ends the utterance. It is a no-op when nothing is recording.
func (cm *ConnectionManager) StopRecording() {
	if !cm.capture.StopRecording() {
		return
	}
	cm.store.SetRecording(false)
	cm.store.SetThinking(true)
}

// RequestSessions asks the agent for the session list
func (cm *ConnectionManager) RequestSessions() {
	cm.sendGuaranteed(websocket.NewGetSessionsFrame())
}

// RequestTranscripts asks for the transcript of session id. A cached copy is
// shown right away; the fresh one replaces it when it arrives.
func (cm *ConnectionManager) RequestTranscripts(id string) {
	if cm.store.LoadTranscripts(id) {
		cm.logger.Debug("Serving cached transcripts", zap.String("sessionID", id))
	}
	cm.sendGuaranteed(websocket.NewGetTranscriptsFrame(id))
}

// SwitchSession displays session id without changing the live session
func (cm *ConnectionManager) SwitchSession(id string) {
	if cm.store.ViewSession(id) {
		cm.logger.Debug("Serving cached transcripts", zap.String("sessionID", id))
	}
	cm.sendGuaranteed(websocket.NewGetTranscriptsFrame(id))
}

// DeleteSession deletes a past session. When it is the one on display the
// view falls back to the live session.
func (cm *ConnectionManager) DeleteSession(id string) error {
	sessions := cm.store.Sessions()
	if id == sessions.Live && id != "" {
		return ErrDeleteLiveSession
	}

	cm.store.RemoveSession(id)
	cm.sendGuaranteed(websocket.NewDeleteSessionFrame(id))

	if sessions.Viewed == id {
		cm.store.ClearTranscripts()
		cm.SwitchSession(sessions.Live)
	}
	cm.logger.Info("Session deletion requested", zap.String("sessionID", id))
	return nil
}

// CreateNewSession asks the agent for a fresh session. The assignment arrives
// as a uuid frame.
func (cm *ConnectionManager) CreateNewSession() {
	cm.sendGuaranteed(websocket.NewSessionFrame())
}

// InterruptStreamingResponse asks the agent to stop speaking
func (cm *ConnectionManager) InterruptStreamingResponse() {
	cm.sendGuaranteed(websocket.NewKillStreamingFrame())
}

// SetTTS turns spoken responses on or off
func (cm *ConnectionManager) SetTTS(enabled bool) {
	cm.sendGuaranteed(websocket.NewSetTTSFrame(enabled))
}

// IsRecording reports whether the microphone is streaming
func (cm *ConnectionManager) IsRecording() bool {
	return cm.store.IsRecording()
}

// IsStreamingResponse reports whether the agent is speaking
func (cm *ConnectionManager) IsStreamingResponse() bool {
	return cm.store.IsStreamingResponse()
}

// SendAudioChunk sends one capture chunk if the connection is open
func (cm *ConnectionManager) SendAudioChunk(base64Audio string) error {
	frame := websocket.NewAudioChunkFrame(base64Audio)
	payload, err := frame.Stamp(cm.correlator.Current()).Encode()
	if err != nil {
		return err
	}
	return cm.transport.Send(payload)
}

// SendAudioFinal sends the end of utterance marker
func (cm *ConnectionManager) SendAudioFinal() {
	cm.sendGuaranteed(websocket.NewAudioFinalFrame())
}

// Close stops recording and playback and closes the connection
func (cm *ConnectionManager) Close() error {
	cm.closeOnce.Do(func() {
		var errs []error
		if err := cm.capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release microphone: %w", err))
		}
		cm.store.SetRecording(false)
		if err := cm.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
		if err := cm.playback.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release audio output: %w", err))
		}
		cm.closeErr = errors.Join(errs...)
		cm.logger.Info("Connection manager closed")
	})
	return cm.closeErr
}

// sendGuaranteed stamps frame with the live session at call time and hands it
// to the transport, which delivers it once the connection is open.
func (cm *ConnectionManager) sendGuaranteed(frame websocket.OutboundFrame) {
	payload, err := frame.Stamp(cm.correlator.Current()).Encode()
	if err != nil {
		cm.logger.Error("Failed to encode frame", zap.String("type", string(frame.Type)), zap.Error(err))
		return
	}
	cm.transport.SendGuaranteed(payload)
}
