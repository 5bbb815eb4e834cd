// Package cloudinary uploads images to Cloudinary's signed upload API.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timiFoxtrot/main-product-store/internal/storage"
	"github.com/timiFoxtrot/main-product-store/pkg/httpclient"
)

const upstream = "cloudinary"

// Config holds account credentials and the target folder.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// BaseURL defaults to https://api.cloudinary.com/v1_1.
	BaseURL string
}

// Doer sends a request; *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Storage implements storage.Storage against Cloudinary.
type Storage struct {
	cfg    Config
	client Doer
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cloudinary store that sends requests through client.
func New(cfg Config, client Doer, logger *slog.Logger) *Storage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com/v1_1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Storage{cfg: cfg, client: client, logger: logger, now: time.Now}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

// Upload sends the file as a signed multipart upload and returns the
// secure_url Cloudinary assigns.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	params := map[string]string{
		"public_id": publicID(input.Key),
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	}
	if s.cfg.Folder != "" {
		params["folder"] = s.cfg.Folder
	}

	body, contentType, err := s.multipartBody(params, input)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/image/upload", s.cfg.BaseURL, s.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create cloudinary request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload %s: %w", input.Key, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, upstream)
	}
	defer func() { _ = resp.Body.Close() }()

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cloudinary response: %w", err)
	}
	if out.SecureURL == "" {
		return nil, fmt.Errorf("cloudinary response missing secure_url")
	}

	s.logger.DebugContext(ctx, "image uploaded",
		slog.String("public_id", out.PublicID),
		slog.Duration("duration", time.Since(start)),
	)
	return &storage.UploadResult{Key: out.PublicID, URL: out.SecureURL}, nil
}

// multipartBody buffers the form so the request can be replayed on retry.
func (s *Storage) multipartBody(params map[string]string, input *storage.UploadInput) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.WriteField("api_key", s.cfg.APIKey); err != nil {
		return nil, "", fmt.Errorf("write field api_key: %w", err)
	}
	if err := mw.WriteField("signature", Sign(params, s.cfg.APISecret)); err != nil {
		return nil, "", fmt.Errorf("write field signature: %w", err)
	}

	filename := input.Filename
	if filename == "" {
		filename = input.Key
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, input.Data); err != nil {
		return nil, "", fmt.Errorf("read upload %s: %w", input.Key, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// Sign computes Cloudinary's request signature: the SHA-1 hex digest of the
// parameters sorted by name, joined as k=v pairs with '&', followed by the
// API secret.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// publicID strips the extension; Cloudinary appends the detected format.
func publicID(key string) string {
	if i := strings.LastIndex(key, "."); i > strings.LastIndex(key, "/") {
		return key[:i]
	}
	return key
}
