// Package atis talks to the external ATIS text generator and rotates ATIS identifiers.
package atis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"go.uber.org/zap"
)

// Request is the configuration the generator turns into ATIS text.
type Request struct {
	ICAO             string   `json:"icao"`
	Ident            string   `json:"ident"`
	LandingRunways   []string `json:"landing_runways"`
	DepartingRunways []string `json:"departing_runways"`
	Approaches       []string `json:"approaches"`
	Remarks          string   `json:"remarks,omitempty"`
}

type response struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Generator produces ATIS text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client implements Generator over HTTP.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a generator client posting to url.
func NewClient(url string, log *zap.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Generate posts req and returns the generated text. Failures wrap errs.ErrUpstream.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: atis generator: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: atis generator read: %v", errs.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("atis: generator returned non-200",
			zap.String("icao", req.ICAO), zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: atis generator status %d", errs.ErrUpstream, resp.StatusCode)
	}
	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: atis generator decode: %v", errs.ErrUpstream, err)
	}
	if out.Text == "" {
		if out.Error != "" {
			return "", fmt.Errorf("%w: atis generator: %s", errs.ErrUpstream, out.Error)
		}
		return "", fmt.Errorf("%w: atis generator returned empty text", errs.ErrUpstream)
	}
	return out.Text, nil
}
