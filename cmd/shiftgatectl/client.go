package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/solaius/shiftgate/pkg/audit"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

const executionTokenHeader = "X-Execution-Token"

type shiftgateClient struct {
	baseURL string
	http    *http.Client
	org     string
	site    string
	user    string
	token   string
}

func newClient() *shiftgateClient {
	return &shiftgateClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		org:  flagOrEnv(orgID, "SHIFTGATE_ORG"),
		site: flagOrEnv(siteID, "SHIFTGATE_SITE"),
		user: flagOrEnv(userID, "SHIFTGATE_USER"),
	}
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s: %s", e.Status, e.Code, e.Message)
}

func (c *shiftgateClient) do(method, path string, query url.Values, body any, v any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.org != "" {
		req.Header.Set(tenancy.OrgHeader, c.org)
	}
	if c.site != "" {
		req.Header.Set(tenancy.SiteHeader, c.site)
	}
	if c.user != "" {
		req.Header.Set(tenancy.UserHeader, c.user)
	}
	if c.token != "" {
		req.Header.Set(executionTokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		if e, err := audit.DecodeError(raw); err == nil {
			return resp.Header, &apiError{Status: resp.StatusCode, Code: e.Code, Message: e.Message}
		}
		return resp.Header, &apiError{Status: resp.StatusCode, Message: string(raw)}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return resp.Header, fmt.Errorf("decode error: %w", err)
		}
	}
	return resp.Header, nil
}

// getJSON performs a GET request and decodes the response.
func (c *shiftgateClient) getJSON(path string, query url.Values, v any) (http.Header, error) {
	return c.do(http.MethodGet, path, query, nil, v)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *shiftgateClient) postJSON(path string, body any, v any) (http.Header, error) {
	return c.do(http.MethodPost, path, nil, body, v)
}
