package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConn adapts a gorilla connection to the message-oriented Conn
type WebSocketConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex
}

// WebSocketDialer connects to the realtime endpoint over ws:// or wss://
type WebSocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration

	// Token, when set, is sent as a bearer Authorization header on the
	// upgrade request in addition to the authenticate event.
	Token CredentialProvider
}

// NewWebSocketDialer creates a dialer for a ws:// or wss:// URL
func NewWebSocketDialer(rawURL string, token CredentialProvider) *WebSocketDialer {
	return &WebSocketDialer{
		URL:              rawURL,
		HandshakeTimeout: 10 * time.Second,
		Token:            token,
	}
}

// Dial implements Dialer
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}

	header := http.Header{}
	for k, v := range d.Header {
		header[k] = append([]string(nil), v...)
	}
	if d.Token != nil {
		if token, ok := d.Token.Token(); ok && token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		// Improve error message for common TLS/handshake issues
		if errors.Is(err, websocket.ErrBadHandshake) {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			if strings.HasPrefix(d.URL, "wss://") {
				return nil, fmt.Errorf("handshake with %s failed (status %d), server may not support WSS: %w", d.URL, status, err)
			}
			return nil, fmt.Errorf("handshake with %s failed (status %d), server may require WSS: %w", d.URL, status, err)
		}
		return nil, err
	}

	return NewWebSocketConn(ws), nil
}

// NewWebSocketConn wraps an established gorilla connection
func NewWebSocketConn(ws *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{ws: ws}
}

// ReadMessage returns the next text frame. Binary frames are rejected since
// the event channel is JSON only.
func (c *WebSocketConn) ReadMessage() ([]byte, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected websocket message type %d", messageType)
	}
	return data, nil
}

// WriteMessage sends one text frame
func (c *WebSocketConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return ErrNotConnected
	}

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame on a best-effort basis and closes the socket
func (c *WebSocketConn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}
