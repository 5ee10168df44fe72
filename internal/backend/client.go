/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx server response. Line is set when a published script failed to parse.
type APIError struct {
	Status  int
	Message string
	Line    int
}

func (e *APIError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("server %d: line %d error: %s", e.Status, e.Line, e.Message)
	}
	return fmt.Sprintf("server %d: %s", e.Status, e.Message)
}

// Client is a minimal HTTP client for the shared script library.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the transport client, e.g. for TLS settings.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.client = h
	return c
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, u.Path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Line  int    `json:"line"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, Line: e.Line}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// RequestToken asks the server for a bearer token for subject.
func (c *Client) RequestToken(ctx context.Context, subject string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ListScripts returns the newest shared scripts.
func (c *Client) ListScripts(ctx context.Context) ([]ScriptInfo, error) {
	var list []ScriptInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/scripts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchScript downloads one shared script.
func (c *Client) FetchScript(ctx context.Context, id int64) (*SharedScript, error) {
	var sc SharedScript
	if err := c.doJSON(ctx, http.MethodGet, "/api/scripts/"+strconv.FormatInt(id, 10), nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// PublishScript uploads a script under name. The server validates it with the script parser.
func (c *Client) PublishScript(ctx context.Context, name, text string) (*ScriptInfo, error) {
	var info ScriptInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/scripts", PublishRequest{Name: name, Text: text}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Search finds shared script lines matching text.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]LineHit, error) {
	v := url.Values{}
	v.Set("q", text)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var hits []LineHit
	if err := c.doJSON(ctx, http.MethodGet, "/api/search?"+v.Encode(), nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}
