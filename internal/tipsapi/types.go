package tipsapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rafaeljc/tipsengine/internal/tips"
)

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// GetTipsRequest is the body of POST /tips/gettips. Every field is
// optional.
type GetTipsRequest struct {
	// OptIn is honoured only when it is a JSON boolean.
	OptIn json.RawMessage `json:"optin"`

	// UserData is the citizen's record the rules are evaluated against.
	UserData json.RawMessage `json:"userData"`

	// Tips are caller supplied tips merged into the pool.
	Tips json.RawMessage `json:"tips"`
}

// ReloadResponse is returned by the admin reload endpoint.
type ReloadResponse struct {
	Changed bool   `json:"changed"`
	Version string `json:"version"`
	Tips    int    `json:"tips"`
}

// toRequest converts the body into a pipeline request.
func (b GetTipsRequest) toRequest(audience []string) (tips.Request, error) {
	req := tips.Request{Audience: audience}

	var optIn bool
	if json.Unmarshal(b.OptIn, &optIn) == nil {
		req.OptIn = optIn
	}

	if isAbsent(b.UserData) {
		req.UserData = map[string]any{}
	} else {
		dec := json.NewDecoder(bytes.NewReader(b.UserData))
		dec.UseNumber()
		if err := dec.Decode(&req.UserData); err != nil {
			return tips.Request{}, fmt.Errorf("invalid userData: %w", err)
		}
	}

	if !isAbsent(b.Tips) {
		if err := json.Unmarshal(b.Tips, &req.SourceTips); err != nil {
			return tips.Request{}, fmt.Errorf("tips must be an array: %w", err)
		}
	}

	return req, nil
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// parseAudience splits the comma separated audience parameter. A missing or
// blank parameter disables the audience stage.
func parseAudience(param string) []string {
	var out []string
	for _, a := range strings.Split(param, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
