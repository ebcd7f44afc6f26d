package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/KeelyW-11/school-equipment-inventory/config"
	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
)

// HTTPSource fetches the equipment table over HTTP.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPSource creates a source for rawURL, honouring the configured proxy and headers.
func NewHTTPSource(rawURL string, cfg *config.CatalogConfig) *HTTPSource {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Catalog source will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return &HTTPSource{
		url:     rawURL,
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

func (s *HTTPSource) Name() string { return s.url }

// Open performs the request and hands back the response body.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// FileSource reads the equipment table from a local file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	return f, nil
}

// FromConfig picks the configured source: a URL wins over a path. It returns nil when
// neither is set, which makes the catalog load its built-in records.
func FromConfig(cfg *config.CatalogConfig) catalog.Source {
	switch {
	case cfg.SourceURL != "":
		return NewHTTPSource(cfg.SourceURL, cfg)
	case cfg.SourcePath != "":
		return NewFileSource(cfg.SourcePath)
	default:
		return nil
	}
}
