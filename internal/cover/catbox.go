// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/presenced/presenced/internal/config"
)

const (
	catboxUploadURL    = "https://catbox.moe/user/api.php"
	litterboxUploadURL = "https://litterbox.catbox.moe/resources/internals/api.php"
)

// catboxProvider hosts local art bytes on catbox.moe, or on litterbox
// when auto-expiry is preferred.
type catboxProvider struct {
	cfg     *config.CatboxConfig
	client  *http.Client
	baseURL string
}

func newCatboxProvider(cfg *config.CatboxConfig, client *http.Client) *catboxProvider {
	base := catboxUploadURL
	if cfg.UseLitter {
		base = litterboxUploadURL
	}
	return &catboxProvider{cfg: cfg, client: client, baseURL: base}
}

func (p *catboxProvider) Name() string { return "catbox" }

func (p *catboxProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	if len(req.LocalArt) == 0 {
		return nil, nil // nothing to host
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return nil, fmt.Errorf("catbox form: %w", err)
	}
	if p.cfg.UseLitter {
		if err := writer.WriteField("time", fmt.Sprintf("%dh", p.litterHours())); err != nil {
			return nil, fmt.Errorf("catbox form: %w", err)
		}
	} else if p.cfg.UserHash != "" {
		if err := writer.WriteField("userhash", p.cfg.UserHash); err != nil {
			return nil, fmt.Errorf("catbox form: %w", err)
		}
	}

	part, err := writer.CreateFormFile("fileToUpload", uuid.NewString()+".jpg")
	if err != nil {
		return nil, fmt.Errorf("catbox form: %w", err)
	}
	if _, err := part.Write(req.LocalArt); err != nil {
		return nil, fmt.Errorf("catbox form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("catbox form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("catbox request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("catbox upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catbox upload: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("catbox read: %w", err)
	}

	// The API answers with the bare URL as plain text.
	hosted := strings.TrimSpace(string(body))
	if !strings.HasPrefix(hosted, "http") {
		return nil, fmt.Errorf("catbox upload rejected: %s", hosted)
	}

	result := &Result{URL: hosted}
	if p.cfg.UseLitter {
		result.ExpiresAt = time.Now().Add(time.Duration(p.litterHours()) * time.Hour)
	}
	return result, nil
}

// litterHours clamps the configured retention to a value litterbox
// accepts.
func (p *catboxProvider) litterHours() int {
	switch p.cfg.LitterHours {
	case 1, 12, 24, 72:
		return p.cfg.LitterHours
	default:
		return 24
	}
}
