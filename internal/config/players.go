// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// regexRuleKeyPrefix marks a player rule key as a regular expression
// matched against the normalized identity.
const regexRuleKeyPrefix = "re:"

// defaultRuleKey is the reserved key for the fallback rule.
const defaultRuleKey = "default"

// ResolvedPlayer is the fully-merged rule for one player. Every field is
// concrete; unset layers have been filled from lower-priority sources
// down to the built-in defaults.
type ResolvedPlayer struct {
	Ignore         bool
	AppID          string
	Icon           string
	ShowIcon       bool
	AllowStreaming bool

	// ActivityType is the per-player override, nil when no layer set one.
	ActivityType *ActivityType
}

// PlayerRuleFor resolves the effective rule for a normalized identity.
// Rule sources are consulted in priority order — user exact, user regex,
// user wildcard, bundled exact, bundled regex, bundled wildcard, user
// default, bundled default, built-ins — and each field takes its value
// from the highest-priority source that sets it. Resolution is pure;
// callers cache the result for the duration of a tick.
func (c *Config) PlayerRuleFor(identity string) ResolvedPlayer {
	var layers []*PlayerRule

	appendMatches := func(rules map[string]PlayerRule) {
		if exact, ok := rules[identity]; ok {
			layers = append(layers, &exact)
		}
		if rx := matchRegexRule(rules, identity); rx != nil {
			layers = append(layers, rx)
		}
		if wc := matchWildcardRule(rules, identity); wc != nil {
			layers = append(layers, wc)
		}
	}

	appendMatches(c.Player)
	appendMatches(c.BundledPlayers)

	if def, ok := c.Player[defaultRuleKey]; ok {
		layers = append(layers, &def)
	}
	if def, ok := c.BundledPlayers[defaultRuleKey]; ok {
		layers = append(layers, &def)
	}

	return mergeLayers(layers)
}

// matchRegexRule returns the rule for the first "re:" key whose pattern
// matches the whole identity. Keys are tried in sorted order so resolution
// is deterministic when several patterns match.
func matchRegexRule(rules map[string]PlayerRule, identity string) *PlayerRule {
	for _, key := range sortedRuleKeys(rules) {
		pattern, ok := strings.CutPrefix(key, regexRuleKeyPrefix)
		if !ok {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue // rejected at validation; unreachable for installed snapshots
		}
		if loc := re.FindStringIndex(identity); loc != nil && loc[0] == 0 && loc[1] == len(identity) {
			rule := rules[key]
			return &rule
		}
	}
	return nil
}

// matchWildcardRule returns the rule for the first glob key matching the
// identity, in sorted key order.
func matchWildcardRule(rules map[string]PlayerRule, identity string) *PlayerRule {
	for _, key := range sortedRuleKeys(rules) {
		if key == defaultRuleKey || strings.HasPrefix(key, regexRuleKeyPrefix) {
			continue
		}
		if !strings.ContainsAny(key, "*?[") {
			continue
		}
		if ok, err := path.Match(key, identity); err == nil && ok {
			rule := rules[key]
			return &rule
		}
	}
	return nil
}

func sortedRuleKeys(rules map[string]PlayerRule) []string {
	keys := make([]string, 0, len(rules))
	for key := range rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// mergeLayers fills each field from the first layer that sets it,
// finishing with the built-in defaults.
func mergeLayers(layers []*PlayerRule) ResolvedPlayer {
	resolved := ResolvedPlayer{
		Ignore:         false,
		AppID:          DefaultAppID,
		Icon:           DefaultIcon,
		ShowIcon:       true,
		AllowStreaming: false,
	}

	ignoreSet, appIDSet, iconSet, showIconSet, streamingSet := false, false, false, false, false
	for _, layer := range layers {
		if !ignoreSet && layer.Ignore != nil {
			resolved.Ignore = *layer.Ignore
			ignoreSet = true
		}
		if !appIDSet && layer.AppID != nil {
			resolved.AppID = *layer.AppID
			appIDSet = true
		}
		if !iconSet && layer.Icon != nil {
			resolved.Icon = *layer.Icon
			iconSet = true
		}
		if !showIconSet && layer.ShowIcon != nil {
			resolved.ShowIcon = *layer.ShowIcon
			showIconSet = true
		}
		if !streamingSet && layer.AllowStreaming != nil {
			resolved.AllowStreaming = *layer.AllowStreaming
			streamingSet = true
		}
		if resolved.ActivityType == nil && layer.OverrideActivityType != nil {
			at := *layer.OverrideActivityType
			resolved.ActivityType = &at
		}
	}

	return resolved
}

// IsPlayerAllowed reports whether the allowed-player filter admits the
// normalized identity. An empty filter admits everything.
func (c *Config) IsPlayerAllowed(identity string) bool {
	if len(c.AllowedPlayers) == 0 {
		return true
	}
	for _, allowed := range c.AllowedPlayers {
		if allowed == identity {
			return true
		}
	}
	return false
}
