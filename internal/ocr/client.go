// Package ocr provides the text-extraction capability: it submits a
// receipt image to an asynchronous OCR backend and polls for the result.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured indicates the OCR backend credentials are missing.
var ErrNotConfigured = errors.New("OCR backend is not configured")

// ErrNoText indicates the backend finished but found no text in the image.
var ErrNoText = errors.New("no text found in image")

// ErrJobTimeout indicates the job did not complete within the poll attempt ceiling.
var ErrJobTimeout = errors.New("OCR job did not complete in time")

const (
	// maxPollAttempts caps the poll loop. The backend is asynchronous and
	// offers no push notification, so the client polls with a hard attempt
	// ceiling rather than blocking without bound.
	maxPollAttempts = 10
	pollInterval    = time.Second

	requestTimeout = 15 * time.Second
)

// SleepFunc waits between poll attempts. Injected so tests run instantly.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client talks to the OCR backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	sleep      SleepFunc
}

// NewClient creates an OCR client. An empty base URL or API key produces a
// client whose Extract always fails with ErrNotConfigured.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		sleep:      defaultSleep,
	}
}

// NewClientWithSleep creates a Client with a custom sleep function.
// This is primarily used for testing without real delays.
func NewClientWithSleep(baseURL, apiKey string, sleep SleepFunc) *Client {
	c := NewClient(baseURL, apiKey)
	c.sleep = sleep
	return c
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type jobResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Extract submits the image and polls until the job completes, fails, or
// the attempt ceiling is reached.
func (c *Client) Extract(ctx context.Context, imageBytes []byte) (string, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if len(imageBytes) == 0 {
		return "", fmt.Errorf("image data is required")
	}

	jobID, err := c.submit(ctx, imageBytes)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, pollInterval); err != nil {
				return "", fmt.Errorf("OCR poll interrupted: %w", err)
			}
		}

		job, err := c.pollJob(ctx, jobID)
		if err != nil {
			return "", err
		}

		switch job.Status {
		case "done":
			text := strings.TrimSpace(job.Text)
			if text == "" {
				return "", ErrNoText
			}
			return text, nil
		case "failed":
			return "", fmt.Errorf("OCR job failed: %s", job.Error)
		}
		// Still pending, keep polling.
	}

	return "", ErrJobTimeout
}

func (c *Client) submit(ctx context.Context, imageBytes []byte) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create OCR submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit OCR job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("OCR backend returned status %d on submit", resp.StatusCode)
	}

	var payload2 submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload2); err != nil {
		return "", fmt.Errorf("failed to decode OCR submit response: %w", err)
	}
	if payload2.JobID == "" {
		return "", fmt.Errorf("OCR backend returned no job id")
	}
	return payload2.JobID, nil
}

func (c *Client) pollJob(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ocr/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll OCR job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR backend returned status %d on poll", resp.StatusCode)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode OCR job response: %w", err)
	}
	return &job, nil
}
