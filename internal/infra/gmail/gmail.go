// Package gmail wraps the Gmail REST API for the two things the pipeline
// needs: reading alert digest mails under a label and sending the digest.
// Token refresh is out of scope; the client carries a bearer token.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsdigest/config"
)

// Message is one alert digest mail: its HTML body and the internal receive
// timestamp (ms since epoch), which doubles as the connector's item id since
// Gmail assigns it monotonically.
type Message struct {
	ID           string
	InternalDate int64
	HTML         string
}

// Client talks to the Gmail API for a single mailbox ("me").
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AlertsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.APIBase, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// LabelID resolves a label name to its id.
func (c *Client) LabelID(ctx context.Context, name string) (string, error) {
	var payload struct {
		Labels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me/labels", nil, &payload); err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, label := range payload.Labels {
		if label.Name == name {
			return label.ID, nil
		}
	}
	return "", fmt.Errorf("label %q not found", name)
}

// ListMessageIDs returns the message ids carrying the given label.
func (c *Client) ListMessageIDs(ctx context.Context, labelID string) ([]string, error) {
	var payload struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	path := "/users/me/messages?labelIds=" + labelID
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Fetch loads a full message and decodes its HTML part. Messages without an
// HTML part yield an empty body, not an error.
func (c *Client) Fetch(ctx context.Context, id string) (Message, error) {
	var payload struct {
		ID           string `json:"id"`
		InternalDate string `json:"internalDate"`
		Payload      struct {
			MimeType string `json:"mimeType"`
			Body     struct {
				Data string `json:"data"`
			} `json:"body"`
			Parts []struct {
				MimeType string `json:"mimeType"`
				Body     struct {
					Data string `json:"data"`
				} `json:"body"`
			} `json:"parts"`
		} `json:"payload"`
	}
	path := "/users/me/messages/" + id + "?format=full"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return Message{}, fmt.Errorf("fetch message %s: %w", id, err)
	}

	msg := Message{ID: payload.ID}
	if ts, err := strconv.ParseInt(payload.InternalDate, 10, 64); err == nil {
		msg.InternalDate = ts
	}

	var html strings.Builder
	if payload.Payload.MimeType == "text/html" {
		html.WriteString(decodeBody(payload.Payload.Body.Data))
	}
	for _, part := range payload.Payload.Parts {
		if part.MimeType == "text/html" {
			html.WriteString(decodeBody(part.Body.Data))
		}
	}
	msg.HTML = html.String()
	return msg, nil
}

// Relabel moves a message from one label to another, which is how handled
// alert mails are taken out of the inbox query.
func (c *Client) Relabel(ctx context.Context, id, addLabelID, removeLabelID string) error {
	body := map[string]any{
		"addLabelIds":    []string{addLabelID},
		"removeLabelIds": []string{removeLabelID},
	}
	path := "/users/me/messages/" + id + "/modify"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("relabel message %s: %w", id, err)
	}
	return nil
}

// Send delivers an HTML mail through the mailbox.
func (c *Client) Send(ctx context.Context, from, to, subject, htmlBody string) error {
	raw := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		from, to, subject, htmlBody)

	body := map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
	}
	if err := c.do(ctx, http.MethodPost, "/users/me/messages/send", body, nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gmail error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}
