// Package load fetches text sources by URI.
package load

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/agenthands/atag/internal/core/model"
)

type Loader struct {
	Client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{Client: client}
}

// Load returns the content behind an http, https or file URI.
func (l *Loader) Load(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnsupportedScheme, err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resource %s: %w", uri, model.ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", uri, err)
		}
		return string(data), nil
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("resource %s: %w", uri, model.ErrNotFound)
	default:
		return "", fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, uri)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", uri, err)
	}
	return string(body), nil
}
