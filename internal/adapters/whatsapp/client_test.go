package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
)

var _ sender.WhatsAppSender = (*Client)(nil)

func TestSendText_PostsToGateway(t *testing.T) {
	var got sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/message/sendText/chapter-main", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":{"id":"BAE5F00D"},"status":"PENDING"}`))
	}))
	defer srv.Close()

	c := NewClient(0, nil)
	rcpt, err := c.SendText(context.Background(), domain.WhatsAppConfig{
		APIURL: srv.URL + "/", APIKey: "k-123", InstanceName: "chapter-main",
	}, "15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "BAE5F00D", rcpt.ProviderMessageID)
	assert.Equal(t, sendTextRequest{Number: "15551234567", Text: "hello"}, got)
}

func TestSendText_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not connected", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(0, nil).SendText(context.Background(), domain.WhatsAppConfig{
		APIURL: srv.URL, APIKey: "k", InstanceName: "i",
	}, "1555", "x")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Contains(t, perr.Error(), "instance not connected")
}

func TestSendText_NotConfigured(t *testing.T) {
	_, err := NewClient(0, nil).SendText(context.Background(), domain.WhatsAppConfig{}, "1555", "x")
	assert.ErrorIs(t, err, sender.ErrNotConfigured)
}

func TestConnectionState_ReadsInstanceState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/instance/connectionState/chapter-main", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instance":{"instanceName":"chapter-main","state":"OPEN"}}`))
	}))
	defer srv.Close()

	conn, err := NewClient(0, nil).ConnectionState(context.Background(), domain.WhatsAppConfig{
		APIURL: srv.URL, APIKey: "k-123", InstanceName: "chapter-main",
	})
	require.NoError(t, err)
	assert.Equal(t, sender.Connection{Instance: "chapter-main", State: "open"}, conn)
	assert.True(t, conn.Connected())
}

func TestConnectionState_Unpaired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"instance":{"state":"close"}}`))
	}))
	defer srv.Close()

	conn, err := NewClient(0, nil).ConnectionState(context.Background(), domain.WhatsAppConfig{
		APIURL: srv.URL, APIKey: "k", InstanceName: "i",
	})
	require.NoError(t, err)
	assert.Equal(t, "i", conn.Instance)
	assert.False(t, conn.Connected())
}

func TestConnectionState_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(0, nil).ConnectionState(context.Background(), domain.WhatsAppConfig{
		APIURL: srv.URL, APIKey: "bad", InstanceName: "i",
	})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

func TestParseStatus(t *testing.T) {
	cases := map[string]domain.DeliveryStatus{
		"SERVER_ACK":   domain.DeliverySent,
		"delivery_ack": domain.DeliveryDelivered,
		"READ":         domain.DeliveryDelivered,
		"ERROR":        domain.DeliveryFailed,
		"PENDING":      domain.DeliveryPending,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStatus("TYPING")
	assert.False(t, ok)
}
