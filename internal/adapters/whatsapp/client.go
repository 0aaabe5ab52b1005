// Package whatsapp sends text messages through an Evolution API gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
)

const maxErrorBody = 4 << 10

// Client implements sender.WhatsAppSender.
type Client struct {
	http *http.Client
	log  *zap.Logger
}

func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: &http.Client{Timeout: timeout}, log: log}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// ProviderError is returned for non-2xx gateway responses.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("whatsapp gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp gateway returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) SendText(ctx context.Context, cfg domain.WhatsAppConfig, phone, text string) (sender.Receipt, error) {
	if !cfg.Configured() {
		return sender.Receipt{}, sender.ErrNotConfigured
	}
	endpoint := strings.TrimRight(cfg.APIURL, "/") + "/message/sendText/" + url.PathEscape(cfg.InstanceName)

	body, err := json.Marshal(sendTextRequest{Number: phone, Text: text})
	if err != nil {
		return sender.Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return sender.Receipt{}, fmt.Errorf("whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return sender.Receipt{}, fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		c.log.Warn("whatsapp send rejected", zap.Int("status", resp.StatusCode), zap.String("instance", cfg.InstanceName))
		return sender.Receipt{}, perr
	}

	var out sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sender.Receipt{}, fmt.Errorf("decode whatsapp response: %w", err)
	}
	return sender.Receipt{ProviderMessageID: out.Key.ID}, nil
}

type connectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
}

// ConnectionState asks the gateway whether the instance is paired and online.
func (c *Client) ConnectionState(ctx context.Context, cfg domain.WhatsAppConfig) (sender.Connection, error) {
	if !cfg.Configured() {
		return sender.Connection{}, sender.ErrNotConfigured
	}
	endpoint := strings.TrimRight(cfg.APIURL, "/") + "/instance/connectionState/" + url.PathEscape(cfg.InstanceName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sender.Connection{}, fmt.Errorf("whatsapp request: %w", err)
	}
	req.Header.Set("apikey", cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return sender.Connection{}, fmt.Errorf("whatsapp connection state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("whatsapp connection state rejected", zap.Int("status", resp.StatusCode), zap.String("instance", cfg.InstanceName))
		return sender.Connection{}, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out connectionStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sender.Connection{}, fmt.Errorf("decode whatsapp response: %w", err)
	}
	conn := sender.Connection{Instance: out.Instance.InstanceName, State: strings.ToLower(out.Instance.State)}
	if conn.Instance == "" {
		conn.Instance = cfg.InstanceName
	}
	return conn, nil
}

// ParseStatus maps a gateway message status to a delivery status. ok is false for
// statuses that carry no delivery information.
func ParseStatus(s string) (domain.DeliveryStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return domain.DeliveryPending, true
	case "SERVER_ACK", "SENT":
		return domain.DeliverySent, true
	case "DELIVERY_ACK", "DELIVERED", "READ", "PLAYED":
		return domain.DeliveryDelivered, true
	case "ERROR", "FAILED":
		return domain.DeliveryFailed, true
	}
	return "", false
}
