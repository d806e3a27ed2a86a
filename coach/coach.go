// Package coach talks to the coaching API: it composes the final request
// text from a context pack plus the user's message, sends it, and
// normalizes the reply, including strict validation of any proposal
// payload.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tricoach"
)

// noReply is the stand-in reply when the API response carries no usable
// replyText.
const noReply = "(no reply)"

// ComposeFinalText appends the user's message to the assembled context so
// the API sees one flat prompt with labeled sections.
func ComposeFinalText(contextText, userMessage string) string {
	if contextText == "" {
		return "[USER MESSAGE]\n" + userMessage
	}
	return contextText + "\n\n[USER MESSAGE]\n" + userMessage
}

// MenuCard is one proposed training day.
type MenuCard struct {
	ID           string         `json:"id"`
	Date         string         `json:"date"`
	PrimarySport tricoach.Sport `json:"primarySport"`
	Summary      string         `json:"summary"`
	Detail       string         `json:"detail"`
}

// MenuProposal is the version-1 structured menu a reply may carry.
type MenuProposal struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	Cards   []MenuCard `json:"cards"`
}

// ChatRequest is the POST /v1/chat payload.
type ChatRequest struct {
	Text           string `json:"text"`
	MaxOutputChars int    `json:"max_output_chars,omitempty"`
}

// ChatReply is the normalized chat response. Proposal is nil unless the
// payload passed validation.
type ChatReply struct {
	ReplyText string
	RequestID string
	Proposal  *MenuProposal
}

// HealthStatus is the GET /health response.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// SectionFlags reports which labeled sections the echo endpoint saw in the
// submitted text.
type SectionFlags struct {
	Always   bool `json:"always"`
	History  bool `json:"history"`
	RestMenu bool `json:"restmenu"`
	Chat     bool `json:"chat"`
}

// EchoResult is the POST /v1/echo response, used to verify a context pack
// survives the round trip intact.
type EchoResult struct {
	Chars       int          `json:"chars"`
	Head        string       `json:"head"`
	HasSections SectionFlags `json:"hasSections"`
}

// Client is the coaching API client.
type Client struct {
	BaseURL string
	// MaxOutputChars is forwarded on every chat request; zero omits it.
	MaxOutputChars int
	HTTPClient     *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:        baseURL,
		MaxOutputChars: 1200,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Chat sends the composed text and returns the normalized reply. A
// malformed response body is not an error: it normalizes to a "(no reply)"
// turn, matching the tolerance of the rest of the pipeline.
func (c *Client) Chat(ctx context.Context, text string) (*ChatReply, error) {
	body, err := json.Marshal(ChatRequest{Text: text, MaxOutputChars: c.MaxOutputChars})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat send failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat send failed: status %d", res.StatusCode)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	return normalizeChatResponse(data), nil
}

// Health checks the API.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: status %d", res.StatusCode)
	}
	var status HealthStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// Echo submits text to the echo endpoint, which reports length and which
// labeled sections it detected.
func (c *Client) Echo(ctx context.Context, text string) (*EchoResult, error) {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode echo request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/echo", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build echo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("echo failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("echo failed: status %d", res.StatusCode)
	}
	var result EchoResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode echo response: %w", err)
	}
	return &result, nil
}

// normalizeChatResponse tolerates anything the wire hands back: a missing
// or non-string replyText becomes "(no reply)", and a proposal that fails
// validation is dropped rather than surfaced.
func normalizeChatResponse(data []byte) *ChatReply {
	var raw struct {
		ReplyText *string         `json:"replyText"`
		RequestID string          `json:"requestId"`
		Proposal  json.RawMessage `json:"proposal"`
	}
	reply := &ChatReply{ReplyText: noReply}
	if err := json.Unmarshal(data, &raw); err != nil {
		return reply
	}
	if raw.ReplyText != nil {
		reply.ReplyText = *raw.ReplyText
	}
	reply.RequestID = raw.RequestID
	reply.Proposal = parseProposal(raw.Proposal)
	return reply
}

// parseProposal accepts only a well-formed version-1 menu: type "menu",
// version 1, at least one card, and a first card that actually carries a
// summary string.
func parseProposal(raw json.RawMessage) *MenuProposal {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var probe struct {
		Type    string `json:"type"`
		Version int    `json:"version"`
		Cards   []struct {
			Summary *string `json:"summary"`
		} `json:"cards"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	if probe.Type != "menu" || probe.Version != 1 || len(probe.Cards) == 0 {
		return nil
	}
	if probe.Cards[0].Summary == nil {
		return nil
	}
	var proposal MenuProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return nil
	}
	return &proposal
}
