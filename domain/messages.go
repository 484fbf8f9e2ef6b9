package domain

// FrameType is the discriminant carried in the "type" field of every structured frame
type FrameType string

// Frames sent by the client
const (
	FrameTypeText           FrameType = "text"
	FrameTypeAudio          FrameType = "audio"
	FrameTypeGetSessions    FrameType = "get_sessions"
	FrameTypeGetTranscripts FrameType = "get_transcripts"
	FrameTypeDeleteSession  FrameType = "delete_session"
	FrameTypeNewSession     FrameType = "new_session"
	FrameTypeKillStreaming  FrameType = "kill_streaming"
	FrameTypeSetTTS         FrameType = "set_tts"
)

// Frames sent by the agent
const (
	FrameTypeSessions       FrameType = "sessions"
	FrameTypeUUID           FrameType = "uuid"
	FrameTypeTranscripts    FrameType = "transcripts"
	FrameTypeTranscriptItem FrameType = "transcript_item"
	FrameTypeTTSStart       FrameType = "tts_start"
	FrameTypeTTSStopped     FrameType = "tts_stopped"
	FrameTypeTTSComplete    FrameType = "tts_complete"
	FrameTypeTTSChunk       FrameType = "tts_chunk"
	FrameTypeTTSChunkFinal  FrameType = "tts_chunk_final"
	FrameTypeSessionDeleted FrameType = "session_deleted"
	FrameTypeError          FrameType = "error"
)

const (
	// AudioDataURIPrefix prefixes every base64 capture chunk
	AudioDataURIPrefix = "data:audio/mp3;base64,"

	// PlaybackSampleRate is the rate the agent encodes speech at. It is part of the
	// wire contract and never negotiated.
	PlaybackSampleRate = 44100
)
