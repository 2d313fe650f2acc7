// Package reviewapi provides a typed client for the contract-review API.
package reviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/lexsuite/review-cli/internal/model"
)

// Default base URL of the review backend.
const defaultBaseURL = "http://127.0.0.1:8000"

const apiPrefix = "/api/reviews"

// Client defines the review API operations.
type Client interface {
	// UploadContract uploads a contract document. Validation of size and type
	// is the caller's responsibility; the client only moves bytes.
	UploadContract(ctx context.Context, file io.Reader, filename, title string) (*model.UploadResponse, error)
	// StartReview triggers backend job creation for an uploaded contract.
	// The returned review is pending or processing, never completed.
	StartReview(ctx context.Context, contractID string) (*model.Review, error)
	// GetReview reads the current review state. Idempotent; safe to poll.
	GetReview(ctx context.Context, reviewID string) (*model.Review, error)
	// DownloadReviewedDocument fetches the annotated .docx. Only meaningful
	// once the review is completed; earlier calls surface the server's error.
	DownloadReviewedDocument(ctx context.Context, reviewID string) ([]byte, error)
	// DownloadReport fetches the plain-text review report.
	DownloadReport(ctx context.Context, reviewID string) ([]byte, error)
	// ListContracts returns the contracts the backend knows about.
	ListContracts(ctx context.Context) ([]model.Contract, error)
}

// APIError is returned when the backend responds with a non-2xx status.
// Message carries the server-provided message when one was present.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("reviewapi: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("reviewapi: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests at r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new review API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) UploadContract(ctx context.Context, file io.Reader, filename, title string) (*model.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, eris.Wrap(err, "reviewapi: create form file")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, eris.Wrap(err, "reviewapi: copy file into form")
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			return nil, eris.Wrap(err, "reviewapi: write title field")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "reviewapi: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/upload", &buf)
	if err != nil {
		return nil, eris.Wrap(err, "reviewapi: create upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp model.UploadResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, eris.Wrap(err, "reviewapi: upload contract")
	}
	return &resp, nil
}

func (c *httpClient) StartReview(ctx context.Context, contractID string) (*model.Review, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s%s/%s/start", c.baseURL, apiPrefix, contractID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "reviewapi: create start request")
	}

	var review model.Review
	if err := c.doJSON(req, &review); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("reviewapi: start review for contract %s", contractID))
	}
	return &review, nil
}

func (c *httpClient) GetReview(ctx context.Context, reviewID string) (*model.Review, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s%s/%s", c.baseURL, apiPrefix, reviewID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "reviewapi: create get request")
	}

	var review model.Review
	if err := c.doJSON(req, &review); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("reviewapi: get review %s", reviewID))
	}
	return &review, nil
}

func (c *httpClient) ListContracts(ctx context.Context) ([]model.Contract, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+"/contracts", nil)
	if err != nil {
		return nil, eris.Wrap(err, "reviewapi: create list request")
	}

	var contracts []model.Contract
	if err := c.doJSON(req, &contracts); err != nil {
		return nil, eris.Wrap(err, "reviewapi: list contracts")
	}
	return contracts, nil
}

func (c *httpClient) DownloadReviewedDocument(ctx context.Context, reviewID string) ([]byte, error) {
	data, err := c.download(ctx, fmt.Sprintf("%s%s/%s/download", c.baseURL, apiPrefix, reviewID))
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("reviewapi: download reviewed document %s", reviewID))
	}
	return data, nil
}

func (c *httpClient) DownloadReport(ctx context.Context, reviewID string) ([]byte, error) {
	data, err := c.download(ctx, fmt.Sprintf("%s%s/%s/report", c.baseURL, apiPrefix, reviewID))
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("reviewapi: download report %s", reviewID))
	}
	return data, nil
}

func (c *httpClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, newAPIError(status, body)
	}
	return body, nil
}

// doJSON executes the request and decodes a JSON body into out.
func (c *httpClient) doJSON(req *http.Request, out any) error {
	body, status, err := c.do(req)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return newAPIError(status, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, 0, eris.Wrap(err, "rate limiter wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}

// newAPIError extracts a server message from common JSON error envelopes.
func newAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			msg = envelope.Message
		case envelope.Detail != "":
			msg = envelope.Detail
		case envelope.Error != "":
			msg = envelope.Error
		}
	}
	return &APIError{StatusCode: status, Message: msg, Body: string(body)}
}
