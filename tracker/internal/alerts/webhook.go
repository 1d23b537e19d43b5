package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const deliveryTimeout = 10 * time.Second

// payloadFunc renders the request body for one webhook type.
type payloadFunc func(a *Alert) ([]byte, error)

var payloads = map[string]payloadFunc{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  genericPayload,
}

// deliver posts a to every webhook whose URL resolves. Failures are logged
// and never reach the engine.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		target := wh.URL()
		if target == "" {
			slog.Debug("alerts: webhook url unset, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}
		build, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := build(a)
		if err == nil {
			err = e.post(target, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(target string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

// slackPayload is an incoming-webhook message.
func slackPayload(a *Alert) ([]byte, error) {
	verb := "fired"
	if a.State == "resolved" {
		verb = "resolved"
	}
	text := fmt.Sprintf("[%s] hiketracker %s %s: %s",
		strings.ToUpper(a.Severity), a.RuleName, verb, a.Message)
	return json.Marshal(map[string]string{"text": text})
}

// teamsPayload is a legacy connector MessageCard.
func teamsPayload(a *Alert) ([]byte, error) {
	color := "2EB67D"
	if a.State == "firing" {
		color = map[string]string{"critical": "E01E5A", "warning": "ECB22E"}[a.Severity]
		if color == "" {
			color = "36C5F0"
		}
	}
	facts := []map[string]string{
		{"name": "Severity", "value": a.Severity},
		{"name": "Value", "value": fmt.Sprintf("%g", a.Value)},
		{"name": "Fired", "value": a.FiredAt.UTC().Format(time.RFC3339)},
	}
	if a.ResolvedAt != nil {
		facts = append(facts, map[string]string{"name": "Resolved", "value": a.ResolvedAt.UTC().Format(time.RFC3339)})
	}
	return json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("hiketracker %s: %s", a.State, a.RuleName),
		"sections":   []map[string]interface{}{{"text": a.Message, "facts": facts}},
	})
}

// genericPayload wraps the alert for plain HTTP receivers.
func genericPayload(a *Alert) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Alert *Alert `json:"alert"`
	}{Event: "alert." + a.State, Alert: a})
}
