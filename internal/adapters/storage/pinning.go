// Package storage publishes certificate artifacts and metadata documents to
// a content-addressed pinning provider.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/certmint/certmint-api/internal/core"
)

const (
	defaultCIDExpr     = "IpfsHash"
	defaultGatewayBase = "ipfs://"
	defaultPinFilePath = "/pinning/pinFileToIPFS"
	defaultPinJSONPath = "/pinning/pinJSONToIPFS"

	maxResponseBodyBytes = 4 * 1024
)

// PinningOptions configures a PinningClient.
type PinningOptions struct {
	// BaseURL is the provider API root, e.g. https://api.pinata.cloud.
	BaseURL   string
	AuthToken string

	// CIDExpr is a JMESPath expression locating the content hash in the
	// provider's pin response. Providers disagree on the shape: Pinata
	// answers {"IpfsHash": ...} while web3.storage answers
	// {"value": {"cid": ...}}. Defaults to the Pinata shape.
	CIDExpr string

	// GatewayBase prefixes the extracted CID to form the public artifact
	// URL. Defaults to the ipfs:// scheme.
	GatewayBase string

	PinFilePath string
	PinJSONPath string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// PinningClient implements core.ContentStore over an HTTP pinning provider.
type PinningClient struct {
	baseURL     string
	authToken   string
	cidExpr     string
	gatewayBase string
	pinFilePath string
	pinJSONPath string
	http        *http.Client
	logger      *slog.Logger
}

// NewPinningClient validates the CID expression and constructs a client.
func NewPinningClient(opts PinningOptions) (*PinningClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("pinning base URL is required")
	}

	cidExpr := opts.CIDExpr
	if cidExpr == "" {
		cidExpr = defaultCIDExpr
	}
	if _, err := jmespath.Compile(cidExpr); err != nil {
		return nil, fmt.Errorf("compile cid expression %q: %w", cidExpr, err)
	}

	gatewayBase := opts.GatewayBase
	if gatewayBase == "" {
		gatewayBase = defaultGatewayBase
	}
	pinFilePath := opts.PinFilePath
	if pinFilePath == "" {
		pinFilePath = defaultPinFilePath
	}
	pinJSONPath := opts.PinJSONPath
	if pinJSONPath == "" {
		pinJSONPath = defaultPinJSONPath
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PinningClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		authToken:   opts.AuthToken,
		cidExpr:     cidExpr,
		gatewayBase: gatewayBase,
		pinFilePath: pinFilePath,
		pinJSONPath: pinJSONPath,
		http:        hc,
		logger:      logger,
	}, nil
}

// Publish pins one rendered artifact and returns its content reference.
func (c *PinningClient) Publish(ctx context.Context, artifact *core.Artifact) (*core.PublishedContent, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", artifact.Filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(artifact.Bytes); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	published, err := c.pin(ctx, c.baseURL+c.pinFilePath, writer.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("pin artifact %s: %w", artifact.Filename, err)
	}
	return published, nil
}

// PublishJSON pins a metadata document.
func (c *PinningClient) PublishJSON(ctx context.Context, name string, doc any) (*core.PublishedContent, error) {
	payload, err := json.Marshal(map[string]any{
		"pinataMetadata": map[string]any{"name": name},
		"pinataContent":  doc,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata document: %w", err)
	}

	published, err := c.pin(ctx, c.baseURL+c.pinJSONPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pin metadata %s: %w", name, err)
	}
	return published, nil
}

func (c *PinningClient) pin(ctx context.Context, url, contentType string, body io.Reader) (*core.PublishedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "close pin response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	value, err := jmespath.Search(c.cidExpr, decoded)
	if err != nil {
		return nil, fmt.Errorf("extract cid with %q: %w", c.cidExpr, err)
	}
	cid, ok := value.(string)
	if !ok || cid == "" {
		return nil, fmt.Errorf("cid expression %q matched nothing in provider response", c.cidExpr)
	}

	return &core.PublishedContent{CID: cid, URL: c.gatewayBase + cid}, nil
}
