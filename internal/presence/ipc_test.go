// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package presence

import (
	"bytes"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := map[string]string{"cmd": "SET_ACTIVITY"}
	if err := writeFrame(&buf, opFrame, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	op, data, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if op != opFrame {
		t.Errorf("opcode = %d, want %d", op, opFrame)
	}
	if !strings.Contains(string(data), "SET_ACTIVITY") {
		t.Errorf("payload = %s, want SET_ACTIVITY command", data)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	header := make([]byte, 8)
	header[4] = 0xFF
	header[5] = 0xFF
	header[6] = 0xFF
	header[7] = 0x7F

	_, _, err := readFrame(bytes.NewReader(header))
	if err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}

func TestSocketCandidates(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	candidates := socketCandidates()
	if len(candidates) != 30 {
		t.Fatalf("len(candidates) = %d, want 30", len(candidates))
	}
	if candidates[0] != "/run/user/1000/discord-ipc-0" {
		t.Errorf("first candidate = %q, want runtime dir socket 0", candidates[0])
	}

	var flatpak bool
	for _, c := range candidates {
		if strings.Contains(c, "app/com.discordapp.Discord") {
			flatpak = true
		}
	}
	if !flatpak {
		t.Error("candidates missing the Flatpak socket location")
	}
}

func TestSocketCandidatesFallsBackToTmp(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("TMPDIR", "")
	t.Setenv("TMP", "")
	t.Setenv("TEMP", "")

	candidates := socketCandidates()
	if candidates[0] != "/tmp/discord-ipc-0" {
		t.Errorf("first candidate = %q, want /tmp fallback", candidates[0])
	}
}
