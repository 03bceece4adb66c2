package openai

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = slog.Level(-8)

// loggingTransport authenticates every request and dumps traffic when trace
// logging is enabled.
type loggingTransport struct {
	base         http.RoundTripper
	apiKey       string
	organization string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if t.organization != "" {
		req.Header.Set("OpenAI-Organization", t.organization)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	// Multipart uploads are not dumped with their body.
	withBody := !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/")
	reqDump, err := httputil.DumpRequestOut(req, withBody)
	if err != nil {
		slog.Debug("Failed to dump OpenAI request", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "OpenAI REST Request", "url", req.URL.String(), "dump", redact(string(reqDump), t.apiKey))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// For streaming, don't dump body to avoid consuming it.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")
	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("Failed to dump OpenAI response", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "OpenAI REST Response", "isStream", isStream, "dump", string(respDump))
	}

	return resp, nil
}

func redact(dump, secret string) string {
	if secret == "" {
		return dump
	}
	return strings.ReplaceAll(dump, secret, "[REDACTED]")
}
