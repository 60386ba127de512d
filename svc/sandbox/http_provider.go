package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sandbox states reported by the fleet manager.
const (
	StateRunning  = "running"
	StateStopped  = "stopped"
	StateArchived = "archived"
)

const maxProviderBody = 1 << 20

// HTTPProviderConfig configures the fleet manager client.
type HTTPProviderConfig struct {
	BaseURL string        `env:"SANDBOX_API_URL"`
	APIKey  string        `env:"SANDBOX_API_KEY"`
	Timeout time.Duration `env:"SANDBOX_API_TIMEOUT" envDefault:"30s"`
}

// HTTPProvider implements Provider against the fleet manager's JSON API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider from config.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPProvider) Create(ctx context.Context, password string) (Info, error) {
	var info Info
	err := p.do(ctx, http.MethodPost, "/sandboxes", map[string]string{"password": password}, &info)
	if err != nil {
		return Info{}, err
	}
	if info.ID == "" {
		return Info{}, fmt.Errorf("%w: create returned no sandbox id", ErrProviderFailed)
	}
	return info, nil
}

func (p *HTTPProvider) Ensure(ctx context.Context, id string) (Info, error) {
	var info Info
	path := "/sandboxes/" + url.PathEscape(id)
	if err := p.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return Info{}, err
	}
	if info.State != StateStopped && info.State != StateArchived {
		return info, nil
	}

	if err := p.do(ctx, http.MethodPost, path+"/start", nil, nil); err != nil {
		return Info{}, err
	}
	if err := p.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (p *HTTPProvider) Delete(ctx context.Context, id string) error {
	return p.do(ctx, http.MethodDelete, "/sandboxes/"+url.PathEscape(id), nil, nil)
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: encode request: %w", ErrProviderFailed, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrProviderFailed, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrProviderFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %d", ErrProviderFailed, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrProviderFailed, err)
	}
	return nil
}
