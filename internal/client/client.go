package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/domain"
)

const ratingsPath = "/api/ratings"

// Options tunes the HTTP client.
type Options struct {
	Timeout      time.Duration
	DeviceID     string
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Logger       *zap.Logger
}

// CreateRequest is the body of POST /api/ratings.
type CreateRequest struct {
	Identifier string  `json:"identifier"`
	Rating     int     `json:"rating"`
	Comments   *string `json:"comments,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

// APIError is a non-2xx answer from the ratings API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ratings api: status %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether err is a 400 from the API. Retrying such a
// request cannot succeed.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 400
}

type envelope struct {
	Success bool                `json:"success"`
	ID      int64               `json:"id"`
	Data    []domain.RatingView `json:"data"`
	Error   string              `json:"error"`
}

// Client talks to the ratings API over HTTP.
type Client struct {
	http     *resty.Client
	deviceID string
	logger   *zap.Logger
}

// New constructs a Client for the API rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ratings api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse ratings api url: %q is not absolute", baseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = domain.DefaultDeviceID
	}

	rc := resty.New().
		SetBaseURL(parsed.String()).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	if opts.RetryCount > 0 {
		rc.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(opts.RetryWait).
			SetRetryMaxWaitTime(opts.RetryMaxWait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || (resp != nil && resp.StatusCode() >= 500)
			})
	}

	return &Client{http: rc, deviceID: deviceID, logger: logger}, nil
}

// CreateRating submits one rating and returns the id assigned by the server.
func (c *Client) CreateRating(ctx context.Context, req CreateRequest) (int64, error) {
	var ok, failure envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Device-Id", c.deviceID).
		SetBody(req).
		SetResult(&ok).
		SetError(&failure).
		Post(ratingsPath)
	if err != nil {
		return 0, fmt.Errorf("post rating: %w", err)
	}
	if resp.IsError() {
		c.logger.Debug("ratings api rejected rating",
			zap.String("identifier", req.Identifier),
			zap.Int("status", resp.StatusCode()),
		)
		return 0, toAPIError(resp, failure)
	}
	if !ok.Success {
		return 0, toAPIError(resp, ok)
	}
	return ok.ID, nil
}

// ListRatings fetches every stored rating, most recent first.
func (c *Client) ListRatings(ctx context.Context) ([]domain.RatingView, error) {
	var ok, failure envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&ok).
		SetError(&failure).
		Get(ratingsPath)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, failure)
	}
	if !ok.Success {
		return nil, toAPIError(resp, ok)
	}
	return ok.Data, nil
}

func toAPIError(resp *resty.Response, body envelope) *APIError {
	msg := body.Error
	if msg == "" {
		msg = resp.Status()
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}
