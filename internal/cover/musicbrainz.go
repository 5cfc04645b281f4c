// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

const (
	musicBrainzBaseURL  = "https://musicbrainz.org/ws/2"
	coverArtArchiveURL  = "https://coverartarchive.org"
	musicBrainzUA       = "presenced/1.0 (https://github.com/presenced/presenced)"
	searchLimit         = 5
	candidatesPerSearch = 2
)

// musicBrainzProvider looks covers up by metadata: an album-artist-scoped
// release-group search first, then a recording search bounded by a
// duration window, each candidate checked against the Cover Art Archive.
type musicBrainzProvider struct {
	cfg     *config.MusicBrainzConfig
	client  *http.Client
	baseURL string
	caaURL  string
}

func newMusicBrainzProvider(cfg *config.MusicBrainzConfig, client *http.Client) *musicBrainzProvider {
	return &musicBrainzProvider{
		cfg:     cfg,
		client:  client,
		baseURL: musicBrainzBaseURL,
		caaURL:  coverArtArchiveURL,
	}
}

func (p *musicBrainzProvider) Name() string { return "musicbrainz" }

func (p *musicBrainzProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	md := req.Track

	// Release-group search scoped by album artist is the most precise
	// signal, so it goes first.
	if md.Album != "" {
		artists := md.AlbumArtists
		if len(artists) == 0 {
			artists = md.Artists
		}
		if len(artists) > 0 {
			url, err := p.searchReleaseGroups(ctx, md.Album, artists[0])
			if err != nil {
				return nil, err
			}
			if url != "" {
				return &Result{URL: url}, nil
			}
		}
	}

	if md.Title != "" && len(md.Artists) > 0 {
		url, err := p.searchRecordings(ctx, md)
		if err != nil {
			return nil, err
		}
		if url != "" {
			return &Result{URL: url}, nil
		}
	}

	return nil, nil
}

type mbReleaseGroup struct {
	ID       string `json:"id"`
	Score    int    `json:"score"`
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

type mbRecording struct {
	ID       string `json:"id"`
	Score    int    `json:"score"`
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

func (p *musicBrainzProvider) searchReleaseGroups(ctx context.Context, album, artist string) (string, error) {
	query := fmt.Sprintf(`releasegroup:"%s" AND artist:"%s"`,
		escapeLucene(album), escapeLucene(artist))

	var response struct {
		ReleaseGroups []mbReleaseGroup `json:"release-groups"`
	}
	if err := p.search(ctx, "release-group", query, &response); err != nil {
		return "", err
	}

	tried := 0
	for _, group := range response.ReleaseGroups {
		if group.Score < p.cfg.MinScore {
			continue
		}
		if tried++; tried > candidatesPerSearch {
			break
		}
		if url := p.coverArtURL(ctx, "release-group", group.ID); url != "" {
			return url, nil
		}
		for i, release := range group.Releases {
			if i >= candidatesPerSearch {
				break
			}
			if url := p.coverArtURL(ctx, "release", release.ID); url != "" {
				return url, nil
			}
		}
	}
	return "", nil
}

func (p *musicBrainzProvider) searchRecordings(ctx context.Context, md *models.TrackMetadata) (string, error) {
	query := fmt.Sprintf(`recording:"%s" AND artist:"%s"`,
		escapeLucene(md.Title), escapeLucene(md.Artists[0]))

	// MusicBrainz stores recording lengths in milliseconds.
	if md.Duration > 0 {
		ms := md.Duration.Milliseconds()
		tol := p.cfg.DurationTolerance.Milliseconds()
		low := ms - tol
		if low < 0 {
			low = 0
		}
		query += fmt.Sprintf(" AND dur:[%d TO %d]", low, ms+tol)
	}

	var response struct {
		Recordings []mbRecording `json:"recordings"`
	}
	if err := p.search(ctx, "recording", query, &response); err != nil {
		return "", err
	}

	tried := 0
	for _, recording := range response.Recordings {
		if recording.Score < p.cfg.MinScore {
			continue
		}
		if tried++; tried > candidatesPerSearch {
			break
		}
		for i, release := range recording.Releases {
			if i >= candidatesPerSearch {
				break
			}
			if url := p.coverArtURL(ctx, "release", release.ID); url != "" {
				return url, nil
			}
		}
	}
	return "", nil
}

// search issues one MusicBrainz search query and decodes the response.
func (p *musicBrainzProvider) search(ctx context.Context, entity, query string, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s?query=%s&fmt=json&limit=%d",
		p.baseURL, entity, url.QueryEscape(query), searchLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", musicBrainzUA)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("musicbrainz %s search: %w", entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz %s search: status %d", entity, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("musicbrainz %s decode: %w", entity, err)
	}
	return nil
}

// coverArtURL probes the Cover Art Archive for a front cover and returns
// the URL when one exists. Probe failures are just misses.
func (p *musicBrainzProvider) coverArtURL(ctx context.Context, entity, mbid string) string {
	probe := fmt.Sprintf("%s/%s/%s/front-250", p.caaURL, entity, mbid)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probe, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", musicBrainzUA)

	resp, err := p.client.Do(req)
	if err != nil {
		return ""
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return probe
	}
	return ""
}

// luceneSpecials are the characters with meaning in the MusicBrainz
// query grammar.
const luceneSpecials = `+-!(){}[]^"~*?:\/&|`

// escapeLucene backslash-escapes query-grammar special characters.
func escapeLucene(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
