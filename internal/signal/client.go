package signal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/edgard/signalbot/internal/config"
)

// Client talks to a signal-cli-rest-api instance: it posts replies on the
// REST send endpoint, drains pending envelopes from the REST receive
// endpoint, and dials the websocket receive stream.
type Client struct {
	cfg        config.SignalConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client for the configured endpoints.
func NewClient(cfg config.SignalConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SendTimeout},
		logger:     logger.With("component", "signal_client"),
	}
}

type sendRequest struct {
	Message           string   `json:"message"`
	Number            string   `json:"number"`
	Recipients        []string `json:"recipients"`
	Base64Attachments []string `json:"base64_attachments,omitempty"`
}

// Send posts one message to the given recipients, optionally with a file
// attachment. It returns the gateway's HTTP status code; the gateway
// answers 201 on success. A non-201 status is reportable but not an error,
// replies are fire-and-forget from the pipeline's perspective.
func (c *Client) Send(ctx context.Context, text string, recipients []string, attachmentPath string) (int, error) {
	payload := sendRequest{
		Message:    text,
		Number:     c.cfg.Phone,
		Recipients: recipients,
	}

	if attachmentPath != "" {
		data, err := os.ReadFile(attachmentPath)
		if err != nil {
			return 0, fmt.Errorf("failed to read attachment %s: %w", attachmentPath, err)
		}
		payload.Base64Attachments = []string{base64.StdEncoding.EncodeToString(data)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	url := fmt.Sprintf("http://%s/v2/send", c.cfg.RestURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to post message to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "Gateway rejected outbound message",
			"status", resp.StatusCode, "body", string(respBody))
	} else {
		c.logger.DebugContext(ctx, "Outbound message accepted",
			"recipients", len(recipients), "attachment", attachmentPath != "")
	}
	return resp.StatusCode, nil
}

// Receive drains the pending envelopes for the configured account from the
// REST receive endpoint. Each element of the result is one raw payload in
// the same shape the websocket delivers.
func (c *Client) Receive(ctx context.Context) ([]json.RawMessage, error) {
	url := fmt.Sprintf("http://%s/v1/receive/%s", c.cfg.RestURL, c.cfg.Phone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build receive request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway receive returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var payloads []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("failed to decode receive response: %w", err)
	}

	c.logger.InfoContext(ctx, "Fetched pending messages from gateway", "count", len(payloads))
	return payloads, nil
}

// DialReceive opens the streaming receive connection for the configured
// account. The caller owns the returned connection.
func (c *Client) DialReceive(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("ws://%s/v1/receive/%s", c.cfg.WebsocketURL, c.cfg.Phone)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c.logger.InfoContext(ctx, "Connected to gateway websocket", "url", url)
	return conn, nil
}
