// Package gcs is a small client for the Cloud Storage JSON API covering the
// object operations the storefront needs: media upload, delete and a bucket
// reachability probe.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	readWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"
	apiBaseURL     = "https://storage.googleapis.com"
	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
	errBodyLimit   = 2048
)

// ErrObjectNotFound is returned when deleting an object that does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

var errNotInitialized = errors.New("gcs client not initialized")

type Client struct {
	http    *http.Client
	bucket  string
	baseURL string
}

// NewClient resolves credentials in order: inline JSON, credentials file,
// then application default credentials (metadata server on GCP).
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	ts, err := tokenSource(ctx, gcp)
	if err != nil {
		return nil, err
	}

	client := newClient(ts, cfg.BucketName, apiBaseURL, http.DefaultTransport)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func tokenSource(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		b, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		ts, err := google.DefaultTokenSource(ctx, readWriteScope)
		if err != nil {
			return nil, fmt.Errorf("default gcs credentials: %w", err)
		}
		return ts, nil
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw, readWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return jwtCfg.TokenSource(ctx), nil
}

func newClient(ts oauth2.TokenSource, bucket, baseURL string, base http.RoundTripper) *Client {
	return &Client{
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: base},
		},
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error {
	if c != nil && c.http != nil {
		c.http.CloseIdleConnections()
	}
	return nil
}

// Ping lists at most one object, which needs storage.objects.list on the bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	if c.bucket == "" {
		return errors.New("gcs bucket not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.baseURL, url.PathEscape(c.bucket))
	_, err := c.do(ctx, http.MethodGet, endpoint, "", nil, http.StatusOK)
	if err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// Upload writes body as object with a single media upload. An empty bucket
// means the default bucket.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	if strings.TrimSpace(object) == "" {
		return errors.New("gcs object name is required")
	}
	endpoint := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		c.baseURL, url.PathEscape(c.bucketOr(bucket)), url.QueryEscape(object))
	if _, err := c.do(ctx, http.MethodPost, endpoint, contentType, body, http.StatusOK); err != nil {
		return fmt.Errorf("gcs upload %s: %w", object, err)
	}
	return nil
}

// Delete removes object. A missing object yields ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, bucket, object string) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.baseURL, url.PathEscape(c.bucketOr(bucket)), url.PathEscape(object))
	status, err := c.do(ctx, http.MethodDelete, endpoint, "", nil, http.StatusOK, http.StatusNoContent)
	if status == http.StatusNotFound {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("gcs delete %s: %w", object, err)
	}
	return nil
}

func (c *Client) bucketOr(bucket string) string {
	if bucket == "" {
		return c.bucket
	}
	return bucket
}

// do sends one request and returns the status code. Any status outside
// expected becomes an error carrying the start of the response body.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, expected ...int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	for _, code := range expected {
		if resp.StatusCode == code {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		return resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, msg)
	}
	return resp.StatusCode, errors.New(resp.Status)
}
