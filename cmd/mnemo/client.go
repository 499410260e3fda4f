// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by daemon
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
}

// daemonClient provides HTTP access to a running mnemo server.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

// newDaemonClient creates a client targeting the given host:port address.
func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *daemonClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return c.wrapTransportError(err)
	}
	return decodeResponse(resp, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest.
func (c *daemonClient) postJSON(path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeCLIRequestFailure, "encoding request")
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return c.wrapTransportError(err)
	}
	return decodeResponse(resp, dest)
}

func (c *daemonClient) wrapTransportError(err error) error {
	if isDialError(err) {
		return mnemoerr.Errorf(mnemoerr.CodeCLIDaemonNotRunning,
			"no mnemo server at %s (start one with `mnemo start`)", c.baseURL)
	}
	return mnemoerr.Wrap(err, mnemoerr.CodeCLIRequestFailure, "request failed")
}

func decodeResponse(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return mnemoerr.Errorf(mnemoerr.CodeCLIRequestFailure,
			"server returned status %d: %s", resp.StatusCode, summarizeErrorBody(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// summarizeErrorBody extracts the human-readable detail from a huma
// error payload, falling back to the raw body.
func summarizeErrorBody(body []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &problem); err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
	}
	return string(body)
}

// isDialError returns true if err is a net dial error (connection
// refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
