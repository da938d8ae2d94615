package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	socks "github.com/btcsuite/go-socks/socks"
)

// newHTTPClient returns a new HTTP client that is configured according to the
// proxy settings in the associated connection configuration.
func newHTTPClient(cfg *config) *http.Client {
	// Configure proxy if needed.
	var dial func(ctx context.Context, network, addr string) (net.Conn, error)
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		dial = func(_ context.Context, network, addr string) (net.Conn, error) {
			c, err := proxy.Dial(network, addr)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	// Create and return the new HTTP client potentially configured with a
	// proxy.
	return &http.Client{
		Transport: &http.Transport{DialContext: dial},
		Timeout:   cfg.Timeout,
	}
}

// requestURL returns the URL of path on the configured signer.
func requestURL(cfg *config, path string) string {
	u := url.URL{Scheme: "http", Host: cfg.ServiceURL, Path: path}
	if cfg.AppVersion != "" {
		u.RawQuery = url.Values{"app_version": {cfg.AppVersion}}.Encode()
	}
	return u.String()
}

// sendRequest sends the request to the signer.  A nil body is sent as a
// GET.  A response with a non 2xx status is returned as an error carrying
// the signer's message.
func sendRequest(cfg *config, path string, body interface{}) ([]byte, error) {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, requestURL(cfg, path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResponse, err := newHTTPClient(cfg).Do(req)
	if err != nil {
		return nil, err
	}

	// Read the raw bytes and close the response.
	respBytes, err := io.ReadAll(httpResponse.Body)
	httpResponse.Body.Close()
	if err != nil {
		err = fmt.Errorf("error reading response: %v", err)
		return nil, err
	}

	// Handle unsuccessful HTTP responses
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		// Errors are JSON strings.  Fall back to the raw body otherwise.
		var msg string
		if json.Unmarshal(respBytes, &msg) != nil {
			msg = string(bytes.TrimSpace(respBytes))
		}
		if msg == "" {
			msg = http.StatusText(httpResponse.StatusCode)
		}
		return nil, fmt.Errorf("%d %s", httpResponse.StatusCode, msg)
	}

	return respBytes, nil
}
