// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/presenced/presenced/internal/config"
)

const imgbbUploadURL = "https://api.imgbb.com/1/upload"

// imgbbProvider hosts local art bytes on imgbb, returning the hosted
// URL with the configured expiration.
type imgbbProvider struct {
	cfg     *config.ImgBBConfig
	client  *http.Client
	baseURL string
}

func newImgBBProvider(cfg *config.ImgBBConfig, client *http.Client) *imgbbProvider {
	return &imgbbProvider{cfg: cfg, client: client, baseURL: imgbbUploadURL}
}

func (p *imgbbProvider) Name() string { return "imgbb" }

func (p *imgbbProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	if len(req.LocalArt) == 0 {
		return nil, nil // nothing to host
	}

	form := url.Values{}
	form.Set("key", p.cfg.APIKey)
	form.Set("name", uuid.NewString())
	form.Set("image", base64.StdEncoding.EncodeToString(req.LocalArt))
	if p.cfg.Expiration > 0 {
		form.Set("expiration", strconv.Itoa(int(p.cfg.Expiration.Seconds())))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("imgbb request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imgbb upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imgbb upload: status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("imgbb decode: %w", err)
	}
	if !body.Success || body.Data.URL == "" {
		return nil, fmt.Errorf("imgbb upload rejected")
	}

	result := &Result{URL: body.Data.URL}
	if p.cfg.Expiration > 0 {
		result.ExpiresAt = time.Now().Add(p.cfg.Expiration)
	}
	return result, nil
}
