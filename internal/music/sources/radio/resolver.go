package radio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var validContentTypes = []string{
	"audio/",
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream",
}

type ProbeResult struct {
	ContentType string
	FinalURL    string
	StationName string
}

// Prober validates streaming links by content type and extension heuristics.
type Prober struct {
	Client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		Client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (p *Prober) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	resp, err := p.fetch(ctx, http.MethodHead, rawURL)
	if err != nil || resp.StatusCode >= 400 {
		if resp != nil {
			resp.Body.Close()
		}
		// many stream servers reject HEAD
		resp, err = p.fetch(ctx, http.MethodGet, rawURL)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("probe %s: %w", rawURL, err)
		}
	}
	// live streams never end, only the headers are needed
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ProbeResult{}, fmt.Errorf("probe %s: status %d", rawURL, resp.StatusCode)
	}

	res := ProbeResult{
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		StationName: strings.TrimSpace(resp.Header.Get("icy-name")),
	}
	if isAllowedType(res.ContentType) || isLikelyPlaylist(res.FinalURL) {
		return res, nil
	}
	return ProbeResult{}, fmt.Errorf("%w: content-type %q, url %s", ErrNotAStream, res.ContentType, res.FinalURL)
}

func (p *Prober) fetch(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Icy-MetaData", "1")
	return p.Client.Do(req)
}

func isAllowedType(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}
