package api

// SendTextRequest represents the request payload for a user text turn
type SendTextRequest struct {
	Text string `json:"text"`
}

// SetTTSRequest represents the request payload for toggling spoken responses
type SetTTSRequest struct {
	Value *bool `json:"value"`
}

// RecordingResponse reports the microphone state after a recording request
type RecordingResponse struct {
	Recording bool `json:"recording"`
}

// StreamingResponse reports whether the agent is speaking
type StreamingResponse struct {
	Streaming bool `json:"streaming"`
}

// AcceptedResponse is returned when a request was handed to the agent
type AcceptedResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var accepted = AcceptedResponse{Status: "accepted"}
