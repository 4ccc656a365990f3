package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpError carries the status code through to response classification.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// httpClient wraps the CLOB REST transport.
type httpClient struct {
	client *http.Client
	host   string
}

func newHTTPClient(host string) *httpClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &httpClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		host: strings.TrimSuffix(host, "/"),
	}
}

func (h *httpClient) get(ctx context.Context, endpoint string, headers map[string]string, params map[string]string) (*http.Response, error) {
	reqURL := h.host + endpoint
	if len(params) > 0 {
		u, err := url.Parse(reqURL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	h.setDefaultHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.client.Do(req)
}

// post sends rawBody verbatim. Callers marshal the body themselves so
// the bytes on the wire exactly match what the L2 signature covers.
func (h *httpClient) post(ctx context.Context, endpoint string, headers map[string]string, rawBody []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if rawBody != nil {
		bodyReader = bytes.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.host+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	h.setDefaultHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.client.Do(req)
}

func (h *httpClient) delete(ctx context.Context, endpoint string, headers map[string]string, rawBody []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if rawBody != nil {
		bodyReader = bytes.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.host+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	h.setDefaultHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.client.Do(req)
}

func (h *httpClient) setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "gopoly-clob")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Content-Type", "application/json")
	if req.Method == http.MethodGet {
		req.Header.Set("Accept-Encoding", "gzip")
	}
}

// parseResponse decodes a JSON response, transparently unwrapping gzip.
// Non-2xx responses come back as *httpError with the body attached.
func parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("decode response: %w, body: %s", err, string(bodyBytes))
		}
	}
	return nil
}
