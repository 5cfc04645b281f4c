// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

// TestStoreReloadKeepsLastValid verifies a bad edit never disturbs the
// installed snapshot, while a following good edit takes effect.
func TestStoreReloadKeepsLastValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "interval: 3s\n")

	cfg, err := loadLayers(path)
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	store := NewStore(cfg, path)

	if store.Current().Interval != 3*time.Second {
		t.Fatalf("initial Interval = %v, want 3s", store.Current().Interval)
	}

	// Invalid edit: rejected, snapshot untouched.
	writeConfig(t, path, "interval: 1ms\n")
	if err := store.Reload(); err == nil {
		t.Errorf("Reload() accepted an invalid edit")
	}
	if store.Current().Interval != 3*time.Second {
		t.Errorf("Interval = %v after rejected reload, want 3s", store.Current().Interval)
	}

	// Valid edit: installed.
	writeConfig(t, path, "interval: 4s\n")
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() failed on valid edit: %v", err)
	}
	if store.Current().Interval != 4*time.Second {
		t.Errorf("Interval = %v after applied reload, want 4s", store.Current().Interval)
	}

	select {
	case <-store.Reloaded():
	default:
		t.Errorf("Reloaded() signal missing after successful reload")
	}
}

// TestStoreSnapshotIsolation verifies a reload swaps the pointer rather
// than mutating the snapshot a reader already holds.
func TestStoreSnapshotIsolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "interval: 3s\n")

	cfg, err := loadLayers(path)
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	store := NewStore(cfg, path)

	held := store.Current()
	writeConfig(t, path, "interval: 10s\n")
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	if held.Interval != 3*time.Second {
		t.Errorf("held snapshot mutated: Interval = %v, want 3s", held.Interval)
	}
	if store.Current().Interval != 10*time.Second {
		t.Errorf("current snapshot = %v, want 10s", store.Current().Interval)
	}
	if held == store.Current() {
		t.Errorf("reload should install a distinct snapshot")
	}
}
