package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// StatusError is a response outside the expected status codes.
type StatusError struct {
	StatusCode int
	// Reason is the "error" field of a JSON error body, if any.
	Reason string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFoundError returns true if the error indicates a 404 Not Found response.
func IsNotFoundError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// doGetJSON performs a GET request and unmarshals the JSON response.
func doGetJSON[T any](ctx context.Context, c *Client, endpoint ...string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodGet, c.resolveURL(endpoint...), nil, http.StatusOK)
}

// doPostJSON performs a POST request that accepts either 200 OK or 201 Created.
func doPostJSON[T any](ctx context.Context, c *Client, requestBody any, endpoint ...string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodPost, c.resolveURL(endpoint...), requestBody, http.StatusOK, http.StatusCreated)
}

// doRequestJSON performs an HTTP request with a JSON body and response.
// Unexpected statuses are returned as *StatusError.
func doRequestJSON[T any](ctx context.Context, c *Client, method, url string, requestBody any, expectedStatuses ...int) (*T, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		return nil, newStatusError(resp.StatusCode, body)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	return &result, nil
}

func newStatusError(code int, body []byte) *StatusError {
	se := &StatusError{StatusCode: code, Body: strings.TrimSpace(string(body))}
	if len(se.Body) > 512 {
		se.Body = se.Body[:512]
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Reason = payload.Error
		if se.Reason == "" {
			se.Reason = payload.Message
		}
	}
	return se
}
