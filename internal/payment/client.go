// Package payment checks the status of a payment attempt with the payment
// gateway's REST API.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrAttemptNotFound is returned when the gateway has no attempt with the id.
var ErrAttemptNotFound = errors.New("payment attempt not found")

// Status is what the gateway reports about one attempt.
type Status struct {
	AttemptID string  `json:"id"`
	State     string  `json:"status"`
	Amount    float64 `json:"amount,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}

// Succeeded reports whether the attempt went through.
func (s Status) Succeeded() bool {
	switch strings.ToLower(strings.TrimSpace(s.State)) {
	case "successful", "success", "succeeded", "paid", "completed":
		return true
	}
	return false
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to the payment gateway.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for the gateway at baseURL, authenticating with
// secretKey as a bearer token.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if secretKey != "" {
		rc.SetAuthToken(secretKey)
	}
	return &Client{http: rc}
}

// LookupAttempt fetches the current status of the attempt with id.
func (c *Client) LookupAttempt(ctx context.Context, id string) (Status, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Status{}, fmt.Errorf("lookup attempt: empty id")
	}

	var status Status
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&status).
		SetError(&apiErr).
		Get("/attempts/{id}")
	if err != nil {
		return Status{}, fmt.Errorf("lookup attempt %s: %w", id, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return Status{}, fmt.Errorf("lookup attempt %s: %w", id, ErrAttemptNotFound)
	case resp.IsError():
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return Status{}, fmt.Errorf("lookup attempt %s: gateway returned %d: %s", id, resp.StatusCode(), msg)
	}

	if status.AttemptID == "" {
		status.AttemptID = id
	}
	return status, nil
}
