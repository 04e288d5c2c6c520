package fitbit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

const (
	DefaultBaseURL = "https://api.fitbit.com"
	DateLayout     = "2006-01-02"

	// sleep log responses are small; anything larger is not a sleep log
	maxResponseBytes = 1 << 20
)

// SleepSummary is the daily aggregate returned by the sleep log endpoint
type SleepSummary struct {
	Date               string
	TotalMinutesAsleep int
	TotalTimeInBed     int
	TotalSleepRecords  int
}

// Client reads sleep data from the Fitbit Web API using an already authorized HTTP client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SleepSummary fetches the sleep summary for date (YYYY-MM-DD)
func (c *Client) SleepSummary(ctx context.Context, date string) (*SleepSummary, error) {
	const op = "fetch sleep summary"

	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, failure.New(op, failure.KindInput, "date must be YYYY-MM-DD").WithCause(err)
	}

	url := fmt.Sprintf("%s/1.2/user/-/sleep/date/%s.json", c.baseURL, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.New(op, failure.KindInput, "failed to create request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failure.FromContext(op, ctxErr).WithCause(err)
		}
		return nil, failure.New(op, failure.KindTransport, "request failed").WithCause(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, failure.New(op, failure.KindTransport, "failed to read response").WithCause(err)
	}

	logger.Debug("sleep summary response",
		"date", date,
		"status_code", resp.StatusCode,
		"duration", time.Since(startTime).String(),
	)

	if err := statusError(op, resp, body); err != nil {
		return nil, err
	}

	return parseSleepSummary(date, body)
}

func statusError(op string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := fmt.Sprintf("status %d", resp.StatusCode)
	if apiMsg := gjson.GetBytes(body, "errors.0.message"); apiMsg.Exists() {
		msg += ": " + apiMsg.String()
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure.New(op, failure.KindUnauthorized, msg)
	case http.StatusTooManyRequests:
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, err := strconv.Atoi(retryAfter); err == nil {
				msg += fmt.Sprintf(" (retry after %ds)", secs)
			}
		}
		return failure.New(op, failure.KindRateLimited, msg)
	default:
		return failure.New(op, failure.KindUpstream, msg)
	}
}

func parseSleepSummary(date string, body []byte) (*SleepSummary, error) {
	const op = "decode sleep summary"

	if !gjson.ValidBytes(body) {
		return nil, failure.New(op, failure.KindDecode, "response is not valid JSON")
	}

	summary := gjson.GetBytes(body, "summary")
	asleep := summary.Get("totalMinutesAsleep")
	if !asleep.Exists() || asleep.Type != gjson.Number {
		return nil, failure.New(op, failure.KindDecode, "summary.totalMinutesAsleep is missing or not a number")
	}

	return &SleepSummary{
		Date:               date,
		TotalMinutesAsleep: int(asleep.Int()),
		TotalTimeInBed:     int(summary.Get("totalTimeInBed").Int()),
		TotalSleepRecords:  int(summary.Get("totalSleepRecords").Int()),
	}, nil
}
