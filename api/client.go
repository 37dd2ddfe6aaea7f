// Package api talks to the ordering backend: checkout submission, the shift
// catalog and order fetches.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"optimeal/checkout"
	"optimeal/models"
	"optimeal/utils"
)

const IdempotencyHeader = "Idempotency-Key"

var ErrRejected = errors.New("request rejected by server")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

// TokenSource yields the bearer token for authenticated calls; "" when
// signed out.
type TokenSource interface {
	AccessToken() string
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

func New(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// SubmitCheckout posts the order. Each call carries a fresh idempotency key.
func (c *Client) SubmitCheckout(ctx context.Context, r checkout.Request) (checkout.SubmitResult, error) {
	h := http.Header{}
	h.Set(IdempotencyHeader, utils.GetUUID())
	var res checkout.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/orders/checkout", r, h, &res); err != nil {
		return checkout.SubmitResult{}, err
	}
	return res, nil
}

// AvailableShifts returns the raw shift catalog, "all" sentinel included.
func (c *Client) AvailableShifts(ctx context.Context) ([]string, error) {
	var env envelope[[]string]
	if err := c.do(ctx, http.MethodGet, "/orders/shifts", nil, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return env.Data, nil
}

func (c *Client) GetOrders(ctx context.Context) ([]models.Order, error) {
	var env envelope[[]models.Order]
	if err := c.do(ctx, http.MethodGet, "/orders/user", nil, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return env.Data, nil
}

func (c *Client) GetOrderByID(ctx context.Context, id int64) (models.Order, error) {
	var env envelope[models.Order]
	if err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, nil, &env); err != nil {
		return models.Order{}, err
	}
	if !env.Success {
		return models.Order{}, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return env.Data, nil
}
