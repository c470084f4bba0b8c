// Package dogapi fetches sub-breed lists from the dog.ceo breed API.
package dogapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/illmade-knight/go-dogbreeds/pkg/breeds"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public dog.ceo API root.
const DefaultBaseURL = "https://dog.ceo/api"

const defaultNotFoundMessage = "Breed not found"

const (
	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 1 << 20
	// maxDetailBytes caps how much of an error body is quoted in an error.
	maxDetailBytes = 512
)

// Config holds configuration for the dog.ceo client.
type Config struct {
	// BaseURL is the API root; requests go to <BaseURL>/breed/<breed>/list.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a whole request. Zero leaves it to the transport defaults.
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Option customises a Source.
type Option func(*Source)

// WithHTTPClient replaces the pooled client built by NewSource.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// Source is a breeds.Fetcher backed by the dog.ceo HTTP API. Every failure,
// whether validation, transport, protocol or an unknown breed, is reported as
// a *breeds.NotFoundError.
type Source struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

// NewSource creates a new dog.ceo Source.
func NewSource(cfg *Config, logger zerolog.Logger, opts ...Option) (*Source, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid dog api base url %q: %w", cfg.BaseURL, err)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout

	s := &Source{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger.With().Str("component", "DogAPISource").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info().Str("base_url", base).Dur("timeout", cfg.Timeout).Msg("DogAPISource initialized.")
	return s, nil
}

// GetSubBreeds fetches the sub-breeds of breed. The list is returned exactly
// as the API orders it.
func (s *Source) GetSubBreeds(ctx context.Context, breed string) ([]string, error) {
	if strings.TrimSpace(breed) == "" {
		return nil, breeds.NewNotFoundError(breed, "breed name must not be empty", nil)
	}

	endpoint := s.endpoint(breeds.NormalizeKey(breed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("failed to build request for '%s'", breed), err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("breed", breed).Msg("Request to dog api failed.")
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s'", breed), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s'", breed), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug().Int("status_code", resp.StatusCode).Str("breed", breed).Msg("Dog api returned a non-success status.")
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("failed to fetch sub-breeds for '%s': %s", breed, truncate(body, maxDetailBytes)), nil)
	}
	if len(body) == 0 {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s': empty response", breed), nil)
	}

	return parseSubBreeds(breed, body)
}

// Close releases idle connections held by the client.
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Source) endpoint(key string) string {
	return fmt.Sprintf("%s/breed/%s/list", s.baseURL, url.PathEscape(key))
}

// parseSubBreeds decodes a {"status": ..., "message": [...]} payload.
func parseSubBreeds(breed string, body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s': malformed response", breed), nil)
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s': unexpected payload", breed), nil)
	}

	message := doc.Get("message")
	if !strings.EqualFold(doc.Get("status").String(), "success") {
		reason := defaultNotFoundMessage
		if message.Exists() && message.Type != gjson.Null {
			reason = message.String()
		}
		return nil, breeds.NewNotFoundError(breed, reason, nil)
	}

	if !message.IsArray() {
		return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s': message is not a list", breed), nil)
	}

	items := message.Array()
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			return nil, breeds.NewNotFoundError(breed, fmt.Sprintf("breed not found or request failed for '%s': non-string sub-breed %s", breed, item.Raw), nil)
		}
		names = append(names, item.String())
	}
	return names, nil
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "...(truncated)"
}
