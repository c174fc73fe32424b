// Package api is the HTTP client for the LuxePlan bookings REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"luxeplan/internal/models"
	"luxeplan/internal/slots"
)

var (
	ErrEmptyServiceID = errors.New("service id is required")
	ErrEmptyBookingID = errors.New("booking id is required")
)

// Client calls the bookings endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient constructs a client for baseURL. token is the bearer token issued
// by the auth provider and may be empty for public reads.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zerolog.Nop(),
	}
}

// UseHTTPClient replaces the underlying HTTP client.
func (c *Client) UseHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// UseRateLimit throttles outgoing requests to rps with the given burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UseLogger sets the request logger.
func (c *Client) UseLogger(logger *zerolog.Logger) {
	if logger != nil {
		c.logger = logger.With().Str("component", "api").Logger()
	}
}

// ListBookings returns bookings of serviceID on date (YYYY-MM-DD).
func (c *Client) ListBookings(ctx context.Context, serviceID, date string) ([]models.Booking, error) {
	if serviceID == "" {
		return nil, ErrEmptyServiceID
	}
	if _, err := slots.ParseDate(date); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("serviceId", serviceID)
	q.Set("date", date)
	endpoint := fmt.Sprintf("%s/bookings?%s", c.baseURL, q.Encode())

	var bookings []models.Booking
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// GetBooking fetches a single booking.
func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if id == "" {
		return nil, ErrEmptyBookingID
	}
	endpoint := fmt.Sprintf("%s/bookings/%s", c.baseURL, url.PathEscape(id))
	var b models.Booking
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking posts a new booking.
func (c *Client) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	if req.ServiceID == "" {
		return nil, ErrEmptyServiceID
	}
	endpoint := fmt.Sprintf("%s/bookings", c.baseURL)
	var b models.Booking
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBooking replaces date, time and location of booking id.
func (c *Client) UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.Booking, error) {
	if id == "" {
		return nil, ErrEmptyBookingID
	}
	endpoint := fmt.Sprintf("%s/bookings/%s", c.baseURL, url.PathEscape(id))
	var b models.Booking
	if err := c.doJSON(ctx, http.MethodPut, endpoint, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// HealthCheck checks if the API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api request")

	if resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	// 204 and other empty success bodies leave out at its zero value.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
