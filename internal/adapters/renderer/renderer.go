// Package renderer calls the external certificate rendering service.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/certmint/certmint-api/internal/core"
)

const (
	// maxArtifactBytes caps a rendered artifact; anything larger points at
	// a renderer fault rather than a legitimate certificate.
	maxArtifactBytes = 8 * 1024 * 1024

	maxErrorBodyBytes = 4 * 1024
)

// ClientOptions configures a renderer Client.
type ClientOptions struct {
	// BaseURL is the renderer service root; rendering posts to /render.
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// Client implements core.ArtifactGenerator over the renderer's HTTP API.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient constructs a renderer client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("renderer base URL is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		authToken: opts.AuthToken,
		http:      hc,
	}, nil
}

// renderRequest is the renderer's input document.
type renderRequest struct {
	RecipientName string `json:"recipient_name"`
	WalletAddress string `json:"wallet_address"`
	Cohort        string `json:"cohort,omitempty"`
	EventName     string `json:"event_name"`
	Venue         string `json:"venue,omitempty"`
	StartsAt      string `json:"starts_at,omitempty"`
	EndsAt        string `json:"ends_at,omitempty"`
}

// Generate renders one recipient's certificate. A failure here is fatal for
// that recipient only; the caller isolates it.
func (c *Client) Generate(ctx context.Context, params core.GenerateArtifactParams) (*core.Artifact, error) {
	recipient := params.Recipient
	event := params.Event

	doc := renderRequest{
		RecipientName: recipient.FullName,
		WalletAddress: recipient.WalletAddress,
		Cohort:        recipient.Cohort,
		EventName:     event.Name,
		Venue:         event.Venue,
	}
	if !event.StartsAt.IsZero() {
		doc.StartsAt = event.StartsAt.Format(time.RFC3339)
	}
	if !event.EndsAt.IsZero() {
		doc.EndsAt = event.EndsAt.Format(time.RFC3339)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("renderer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read rendered artifact: %w", err)
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("rendered artifact exceeds %d bytes", maxArtifactBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("renderer returned an empty artifact")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &core.Artifact{
		Filename:    artifactFilename(recipient.ID, contentType),
		ContentType: contentType,
		Bytes:       data,
	}, nil
}

func artifactFilename(recipientID, contentType string) string {
	ext := ".bin"
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		ext = ".png"
	case strings.HasPrefix(contentType, "application/pdf"):
		ext = ".pdf"
	case strings.HasPrefix(contentType, "image/jpeg"):
		ext = ".jpg"
	}
	return recipientID + ext
}
