// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns the singleton validator used for tag-level
// checks. Thread-safe.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that the configuration is internally consistent. A
// failing candidate is never installed; the Store keeps the last-valid
// snapshot instead.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if err := c.validateInterval(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateCover(); err != nil {
		return err
	}
	return c.validatePlayers()
}

// validateInterval bounds the scheduler tick period.
func (c *Config) validateInterval() error {
	if c.Interval < 500*time.Millisecond {
		return fmt.Errorf("interval must be at least 500ms, got %v", c.Interval)
	}
	if c.Interval > time.Hour {
		return fmt.Errorf("interval must be at most 1h, got %v", c.Interval)
	}
	return nil
}

// validateTracker checks poll timeouts and the seek jitter band.
func (c *Config) validateTracker() error {
	if c.Tracker.BusTimeout <= 0 {
		return fmt.Errorf("tracker.bus_timeout must be positive, got %v", c.Tracker.BusTimeout)
	}
	if c.Tracker.BusTimeout > 30*time.Second {
		return fmt.Errorf("tracker.bus_timeout must be at most 30s, got %v", c.Tracker.BusTimeout)
	}
	if c.Tracker.SeekJitter <= 0 {
		return fmt.Errorf("tracker.seek_jitter must be positive, got %v", c.Tracker.SeekJitter)
	}
	return nil
}

// validateCover checks the cover cache and provider chain settings.
func (c *Config) validateCover() error {
	if c.Cover.TTL < 0 {
		return fmt.Errorf("cover.ttl must not be negative, got %v", c.Cover.TTL)
	}
	for _, name := range c.Cover.FileNames {
		if strings.ContainsAny(name, "/\\") {
			return fmt.Errorf("cover.file_names entry %q must be a bare file name", name)
		}
	}
	for _, p := range c.Cover.Provider.Provider {
		if p == "imgbb" && c.Cover.Provider.ImgBB.APIKey == "" {
			return fmt.Errorf("cover.provider.imgbb.api_key is required when imgbb is in the provider chain")
		}
	}
	if c.Cover.Provider.MusicBrainz.DurationTolerance < 0 {
		return fmt.Errorf("cover.provider.musicbrainz.duration_tolerance must not be negative")
	}
	return nil
}

// validatePlayers checks that every rule key is usable: regex patterns
// must compile and wildcard patterns must be well-formed.
func (c *Config) validatePlayers() error {
	if err := validateRuleMap(c.Player); err != nil {
		return err
	}
	return validateRuleMap(c.BundledPlayers)
}

func validateRuleMap(rules map[string]PlayerRule) error {
	for key, rule := range rules {
		if pattern, ok := strings.CutPrefix(key, regexRuleKeyPrefix); ok {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("player rule %q: invalid regex: %w", key, err)
			}
		} else if strings.ContainsAny(key, "*?[") {
			if _, err := path.Match(key, ""); err != nil {
				return fmt.Errorf("player rule %q: invalid wildcard pattern: %w", key, err)
			}
		}
		if rule.AppID != nil && !isNumeric(*rule.AppID) {
			return fmt.Errorf("player rule %q: app_id must be a numeric Discord application ID", key)
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
