// Package media uploads listing photos to an object store so that published
// listings reference durable URLs rather than transport file ids.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/freshmanacadamy/gebeyabot/core/logger"
	coretelegram "github.com/freshmanacadamy/gebeyabot/core/telegram"
)

// Store uploads media bytes and returns a public URL.
type Store interface {
	Upload(ctx context.Context, r io.Reader, path string) (string, error)
}

// Config points the uploader at an object store. An empty BaseURL disables
// uploads; callers then fall back to the transport-resolved URL.
type Config struct {
	BaseURL   string `yaml:"base_url" envconfig:"MEDIA_BASE_URL"`
	PublicURL string `yaml:"public_url" envconfig:"MEDIA_PUBLIC_URL"`
}

// Enabled reports whether uploads are configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

type httpStore struct {
	cfg    Config
	client *http.Client
}

// NewHTTPStore builds an uploader that PUTs objects to cfg.BaseURL/<path>.
func NewHTTPStore(cfg Config) Store {
	return &httpStore{
		cfg:    cfg,
		client: coretelegram.BuildHTTPClient(),
	}
}

func (s *httpStore) Upload(ctx context.Context, r io.Reader, path string) (string, error) {
	target := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, r)
	if err != nil {
		return "", fmt.Errorf("media upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload status: %s", resp.Status)
	}

	public := s.cfg.PublicURL
	if strings.TrimSpace(public) == "" {
		public = s.cfg.BaseURL
	}
	url := strings.TrimRight(public, "/") + "/" + strings.TrimLeft(path, "/")

	logger.L.With("component", "media").Info("media uploaded",
		slog.String("event", "upload"),
		slog.String("path", logger.SanitizeLimit(path, 128)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return url, nil
}
