// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/docbatch/internal/httputil"
	"github.com/pdiddy/docbatch/pkg/types"
)

const (
	doclingConvertPath    = "/v1/convert/file"
	defaultDoclingTimeout = 5 * time.Minute
	// maxErrorBody bounds how much of a failed response is quoted.
	maxErrorBody = 512
)

// doclingResponse is the subset of the docling-serve reply we read.
type doclingResponse struct {
	Document struct {
		MDContent string `json:"md_content"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []struct {
		Message string `json:"error_message"`
	} `json:"errors"`
}

// DoclingConverter uploads documents to a docling-serve instance and
// returns the Markdown export.
type DoclingConverter struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	maxRetries int
}

// NewDoclingConverter validates cfg and returns a converter. apiKey, when
// non-empty, overrides cfg.APIKey.
func NewDoclingConverter(cfg types.DoclingConfig, apiKey string) (*DoclingConverter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("docling backend requires docling.url")
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid docling.url %q", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDoclingTimeout
	}
	if apiKey == "" {
		apiKey = cfg.APIKey
	}

	return &DoclingConverter{
		client:     &http.Client{Timeout: timeout},
		endpoint:   u.String() + doclingConvertPath,
		apiKey:     apiKey,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Convert posts the file as multipart form data and returns the
// normalized md_content of the response.
func (d *DoclingConverter) Convert(ctx context.Context, file types.InputFile) (string, error) {
	body, contentType, err := d.buildForm(file)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-Api-Key", d.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, d.maxRetries)
	if err != nil {
		return "", fmt.Errorf("docling request for %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("docling returned HTTP %d for %s: %s", resp.StatusCode, file.Name, strings.TrimSpace(string(snippet)))
	}

	var dr doclingResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("parsing docling response for %s: %w", file.Name, err)
	}

	if dr.Status != "" && dr.Status != "success" && dr.Status != "partial_success" {
		msg := dr.Status
		if len(dr.Errors) > 0 {
			msg = dr.Errors[0].Message
		}
		return "", fmt.Errorf("docling could not convert %s: %s", file.Name, msg)
	}

	text := Normalize(dr.Document.MDContent)
	if text == "" {
		return "", fmt.Errorf("docling produced empty output for %s", file.Name)
	}
	return text, nil
}

func (d *DoclingConverter) buildForm(file types.InputFile) ([]byte, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("files", filepath.Base(file.Path))
	if err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", file.Name, err)
	}
	if err := mw.WriteField("to_formats", "md"); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
