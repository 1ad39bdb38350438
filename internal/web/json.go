package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/beacon/internal/device"
)

// WebhookRequest is the body of POST webhook/{access}.
type WebhookRequest struct {
	URL           string `json:"url"`
	Payload       string `json:"payload"`
	PerishSeconds *int   `json:"perish_seconds,omitempty"`
}

// EmailRequest is the body of POST email/{access}.
type EmailRequest struct {
	Recipients    []string `json:"recipients"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	PerishSeconds *int     `json:"perish_seconds,omitempty"`
}

// EnqueueResponse reports the ids of queued actions.
type EnqueueResponse struct {
	IDs []string `json:"ids"`
}

// DeviceResponse is a device state as returned by the command route.
type DeviceResponse struct {
	Name       string `json:"name"`
	Visibility string `json:"visibility"`
	FlashMode  string `json:"flash_mode"`
	Index      int    `json:"index"`
	Level      string `json:"level"`
}

func deviceResponse(st device.State) DeviceResponse {
	return DeviceResponse{
		Name:       st.Name,
		Visibility: st.Visibility.String(),
		FlashMode:  st.FlashMode.String(),
		Index:      st.Index,
		Level:      st.Level.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
