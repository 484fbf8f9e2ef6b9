package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/arunika/client/domain"
	"github.com/satriahrh/arunika/client/domain/entities"
)

// ErrMalformedFrame is returned when a text frame is not a structured message
var ErrMalformedFrame = errors.New("malformed frame")

// OutboundFrame is a structured message sent to the agent.
// UUID is always serialized, as null before the agent assigned a session.
type OutboundFrame struct {
	Type  domain.FrameType `json:"type"`
	Text  string           `json:"text,omitempty"`
	Audio string           `json:"audio,omitempty"`
	Final bool             `json:"final,omitempty"`
	ID    *string          `json:"id,omitempty"`
	Value *bool            `json:"value,omitempty"`
	UUID  *string          `json:"uuid"`
}

// Stamp returns a copy of the frame carrying the given session identifier
func (f OutboundFrame) Stamp(sessionID string, ok bool) OutboundFrame {
	if ok {
		id := sessionID
		f.UUID = &id
	} else {
		f.UUID = nil
	}
	return f
}

// Encode serializes the frame
func (f OutboundFrame) Encode() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}
	return b, nil
}

// NewTextFrame creates a user text turn
func NewTextFrame(text string) OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeText, Text: text}
}

// NewAudioChunkFrame creates a capture chunk frame from its base64 body
func NewAudioChunkFrame(base64Audio string) OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeAudio, Audio: domain.AudioDataURIPrefix + base64Audio}
}

// NewAudioFinalFrame creates the end of utterance marker
func NewAudioFinalFrame() OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeAudio, Final: true}
}

// NewGetSessionsFrame requests the session list
func NewGetSessionsFrame() OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeGetSessions}
}

// NewGetTranscriptsFrame requests the transcript of session id
func NewGetTranscriptsFrame(id string) OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeGetTranscripts, ID: &id}
}

// NewDeleteSessionFrame requests deletion of session id
func NewDeleteSessionFrame(id string) OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeDeleteSession, ID: &id}
}

// NewSessionFrame requests a fresh session
func NewSessionFrame() OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeNewSession}
}

// NewKillStreamingFrame asks the agent to stop streaming speech
func NewKillStreamingFrame() OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeKillStreaming}
}

// NewSetTTSFrame toggles spoken responses
func NewSetTTSFrame(value bool) OutboundFrame {
	return OutboundFrame{Type: domain.FrameTypeSetTTS, Value: &value}
}

// InboundFrame is one decoded frame from the agent. The set of implementations is closed.
type InboundFrame interface {
	frameType() domain.FrameType
}

// AudioFrame is a binary frame of PCM16LE mono samples
type AudioFrame struct {
	PCM []byte
}

// SessionsFrame replaces the visible session list
type SessionsFrame struct {
	Sessions []string `json:"sessions"`
}

// UUIDFrame announces a newly assigned session
type UUIDFrame struct {
	UUID string `json:"uuid"`
}

// TranscriptsFrame carries the full transcript of one session
type TranscriptsFrame struct {
	SessionID   string              `json:"session_id"`
	Transcripts entities.Transcript `json:"transcripts"`
}

// TranscriptItem is one complete turn sent by the agent
type TranscriptItem struct {
	Query    string  `json:"query"`
	Response *string `json:"response"`
}

// TranscriptItemFrame carries either a response for the pending turn or a whole turn
type TranscriptItemFrame struct {
	Response *string        `json:"response"`
	Item     *TranscriptItem `json:"transcript_item"`
}

// ResponseOnly reports whether the frame only completes the pending turn
func (f *TranscriptItemFrame) ResponseOnly() bool {
	return f.Item == nil && f.Response != nil
}

// TTSStartFrame marks the start of a spoken response
type TTSStartFrame struct {
	Message string `json:"message"`
}

// TTSStopFrame marks the end of a spoken response, completed or interrupted
type TTSStopFrame struct {
	Interrupted bool   `json:"-"`
	Message     string `json:"message"`
}

// TTSChunkFrame announces that the next binary frame is speech
type TTSChunkFrame struct {
	Final bool `json:"-"`
}

// SessionDeletedFrame confirms a deleted session
type SessionDeletedFrame struct {
	ID string `json:"id"`
}

// ServerErrorFrame reports an agent side failure
type ServerErrorFrame struct {
	Message string `json:"message"`
}

// UnknownFrame is a structured frame with an unrecognized discriminant
type UnknownFrame struct {
	Type domain.FrameType
}

func (*AudioFrame) frameType() domain.FrameType          { return "" }
func (*SessionsFrame) frameType() domain.FrameType       { return domain.FrameTypeSessions }
func (*UUIDFrame) frameType() domain.FrameType           { return domain.FrameTypeUUID }
func (*TranscriptsFrame) frameType() domain.FrameType    { return domain.FrameTypeTranscripts }
func (*TranscriptItemFrame) frameType() domain.FrameType { return domain.FrameTypeTranscriptItem }
func (*TTSStartFrame) frameType() domain.FrameType       { return domain.FrameTypeTTSStart }
func (*SessionDeletedFrame) frameType() domain.FrameType { return domain.FrameTypeSessionDeleted }
func (*ServerErrorFrame) frameType() domain.FrameType    { return domain.FrameTypeError }
func (f *UnknownFrame) frameType() domain.FrameType      { return f.Type }

func (f *TTSStopFrame) frameType() domain.FrameType {
	if f.Interrupted {
		return domain.FrameTypeTTSStopped
	}
	return domain.FrameTypeTTSComplete
}

func (f *TTSChunkFrame) frameType() domain.FrameType {
	if f.Final {
		return domain.FrameTypeTTSChunkFinal
	}
	return domain.FrameTypeTTSChunk
}

type baseFrame struct {
	Type *domain.FrameType `json:"type"`
}

// DecodeText decodes a structured frame. Frames with an unknown type decode to
// *UnknownFrame without error; frames that are not JSON objects with a string
// type field fail with ErrMalformedFrame.
func DecodeText(payload []byte) (InboundFrame, error) {
	var base baseFrame
	if err := json.Unmarshal(payload, &base); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if base.Type == nil {
		return nil, fmt.Errorf("%w: missing type field", ErrMalformedFrame)
	}

	var frame InboundFrame
	switch t := *base.Type; t {
	case domain.FrameTypeSessions:
		frame = &SessionsFrame{}
	case domain.FrameTypeUUID:
		frame = &UUIDFrame{}
	case domain.FrameTypeTranscripts:
		frame = &TranscriptsFrame{}
	case domain.FrameTypeTranscriptItem:
		frame = &TranscriptItemFrame{}
	case domain.FrameTypeTTSStart:
		frame = &TTSStartFrame{}
	case domain.FrameTypeTTSStopped:
		frame = &TTSStopFrame{Interrupted: true}
	case domain.FrameTypeTTSComplete:
		frame = &TTSStopFrame{}
	case domain.FrameTypeTTSChunk:
		return &TTSChunkFrame{}, nil
	case domain.FrameTypeTTSChunkFinal:
		return &TTSChunkFrame{Final: true}, nil
	case domain.FrameTypeSessionDeleted:
		frame = &SessionDeletedFrame{}
	case domain.FrameTypeError:
		frame = &ServerErrorFrame{}
	default:
		return &UnknownFrame{Type: t}, nil
	}

	if err := json.Unmarshal(payload, frame); err != nil {
		return nil, fmt.Errorf("%w: invalid %s frame: %v", ErrMalformedFrame, *base.Type, err)
	}
	return frame, nil
}

// DecodeInbound decodes a frame by its websocket message type
func DecodeInbound(messageType int, payload []byte) (InboundFrame, error) {
	switch messageType {
	case websocket.BinaryMessage:
		return DecodeBinary(payload), nil
	case websocket.TextMessage:
		return DecodeText(payload)
	default:
		return nil, fmt.Errorf("%w: unsupported message type %d", ErrMalformedFrame, messageType)
	}
}

// DecodeBinary wraps a binary frame. Binary frames never carry a discriminant.
func DecodeBinary(payload []byte) InboundFrame {
	return &AudioFrame{PCM: payload}
}
