// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package presence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
)

// ConnState describes the client connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ErrNotConnected reports that no Discord client is reachable and the
// reconnect backoff has not yet elapsed. Callers treat it as a benign
// skip, not a failure.
var ErrNotConnected = errors.New("discord client not connected")

// defaultFrameTimeout bounds a single frame exchange when the caller's
// context carries no deadline of its own. A Discord client that accepts
// the handshake and then goes silent must not block a publish forever.
const defaultFrameTimeout = 5 * time.Second

// Client maintains one handshaken IPC connection for a single Discord
// application id. The handshake response is the liveness check: a
// socket that accepts the dial but rejects the handshake counts as
// disconnected.
//
// Client is not safe for concurrent use; the publisher serializes
// access.
type Client struct {
	appID string

	conn  net.Conn
	state ConnState
	epoch uint64

	retry        *backoff.ExponentialBackOff
	nextAttempt  time.Time
	frameTimeout time.Duration

	// dial is swapped out in tests.
	dial func() (net.Conn, error)
	now  func() time.Time
}

// NewClient creates a disconnected client for the given application id.
// No connection is attempted until the first publish.
func NewClient(appID string) *Client {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = 2 * time.Minute
	retry.MaxElapsedTime = 0 // retry forever

	return &Client{
		appID:        appID,
		state:        StateDisconnected,
		retry:        retry,
		frameTimeout: defaultFrameTimeout,
		dial:         dialIPC,
		now:          time.Now,
	}
}

// Epoch identifies the current connection. It increments on every
// successful handshake, so payload deduplication state from a previous
// connection never suppresses the first send on a new one.
func (c *Client) Epoch() uint64 {
	return c.epoch
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.state
}

// handshakeRequest is the opcode-0 payload sent after connecting.
type handshakeRequest struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

// commandResponse is the subset of Discord's reply we inspect.
type commandResponse struct {
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

// ensureConnected connects and handshakes if needed. While the backoff
// window from a failed attempt is still open it returns ErrNotConnected
// without touching the socket.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.state == StateConnected {
		return nil
	}
	if c.now().Before(c.nextAttempt) {
		return ErrNotConnected
	}

	c.state = StateConnecting
	conn, err := c.dial()
	if err != nil {
		c.scheduleRetry()
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		c.scheduleRetry()
		return fmt.Errorf("%w: handshake: %v", ErrNotConnected, err)
	}

	c.conn = conn
	c.state = StateConnected
	c.epoch++
	c.retry.Reset()
	c.nextAttempt = time.Time{}
	metrics.PresenceReconnects.Inc()

	logging.Info().
		Str("app_id", c.appID).
		Uint64("epoch", c.epoch).
		Msg("Connected to Discord IPC")
	return nil
}

// frameDeadline picks the caller's deadline when it has one and falls
// back to the frame timeout otherwise, so socket reads can never block
// unbounded.
func (c *Client) frameDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(c.frameTimeout)
}

func (c *Client) handshake(ctx context.Context, conn net.Conn) error {
	_ = conn.SetDeadline(c.frameDeadline(ctx))
	defer conn.SetDeadline(time.Time{})

	req := handshakeRequest{Version: 1, ClientID: c.appID}
	if err := writeFrame(conn, opHandshake, req); err != nil {
		return err
	}

	op, payload, err := readFrame(conn)
	if err != nil {
		return err
	}
	if op == opClose {
		return fmt.Errorf("handshake rejected: %s", string(payload))
	}
	if op != opFrame {
		return fmt.Errorf("unexpected handshake opcode %d", op)
	}
	return nil
}

// commandRequest is the opcode-1 SET_ACTIVITY envelope. A nil Activity
// clears the presence for this application id.
type commandRequest struct {
	Cmd   string      `json:"cmd"`
	Args  commandArgs `json:"args"`
	Nonce string      `json:"nonce"`
}

type commandArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity,omitempty"`
}

// SetActivity sends a SET_ACTIVITY command, connecting first if needed.
// A nil activity clears the presence. Any socket error tears down the
// connection and schedules a reconnect attempt.
func (c *Client) SetActivity(ctx context.Context, activity *Activity) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	req := commandRequest{
		Cmd:   "SET_ACTIVITY",
		Args:  commandArgs{PID: os.Getpid(), Activity: activity},
		Nonce: uuid.NewString(),
	}

	conn := c.conn
	_ = conn.SetDeadline(c.frameDeadline(ctx))
	defer conn.SetDeadline(time.Time{})

	if err := writeFrame(conn, opFrame, req); err != nil {
		c.disconnect()
		return fmt.Errorf("set activity: %w", err)
	}

	op, payload, err := readFrame(conn)
	if err != nil {
		c.disconnect()
		return fmt.Errorf("set activity response: %w", err)
	}
	if op == opClose {
		c.disconnect()
		return fmt.Errorf("connection closed by Discord: %s", string(payload))
	}

	var resp commandResponse
	if err := json.Unmarshal(payload, &resp); err == nil && resp.Evt == "ERROR" {
		return fmt.Errorf("set activity rejected: %s (code %d)", resp.Data.Message, resp.Data.Code)
	}
	return nil
}

// Close tears down the connection, sending a polite close frame first.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	_ = writeFrame(c.conn, opClose, struct{}{})
	c.disconnect()
	return nil
}

func (c *Client) disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.scheduleRetry()

	logging.Debug().Str("app_id", c.appID).Msg("Disconnected from Discord IPC")
}

func (c *Client) scheduleRetry() {
	c.state = StateDisconnected
	c.nextAttempt = c.now().Add(c.retry.NextBackOff())
}
