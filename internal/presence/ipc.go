// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package presence owns the connection to the local Discord client and
// publishes deduplicated activity payloads over its IPC socket.
package presence

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// IPC opcodes.
const (
	opHandshake = 0
	opFrame     = 1
	opClose     = 2
	opPing      = 3
	opPong      = 4
)

// dialTimeout bounds one socket connection attempt.
const dialTimeout = 2 * time.Second

// maxFrameSize rejects nonsense lengths before allocating.
const maxFrameSize = 64 << 10

// socketCandidates enumerates every path a Discord client may listen
// on: the numbered sockets in the runtime dir, plus the sandboxed
// locations used by Flatpak and Snap installs.
func socketCandidates() []string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		for _, env := range []string{"TMPDIR", "TMP", "TEMP"} {
			if v := os.Getenv(env); v != "" {
				base = v
				break
			}
		}
	}
	if base == "" {
		base = "/tmp"
	}

	dirs := []string{
		base,
		filepath.Join(base, "app", "com.discordapp.Discord"),
		filepath.Join(base, "snap.discord"),
	}

	var candidates []string
	for _, dir := range dirs {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return candidates
}

// dialIPC connects to the first reachable Discord IPC socket. Liveness
// is established by the handshake that follows, not by the socket file
// existing.
func dialIPC() (net.Conn, error) {
	var lastErr error
	for _, path := range socketCandidates() {
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no socket candidates")
	}
	return nil, fmt.Errorf("no Discord IPC socket reachable: %w", lastErr)
}

// writeFrame sends one length-prefixed JSON frame: little-endian opcode,
// little-endian payload length, payload.
func writeFrame(w io.Writer, op uint32, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], op)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(data)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one frame and returns its opcode and raw payload.
func readFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}

	op := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return op, payload, nil
}
