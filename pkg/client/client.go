// Package client is a thin HTTP client for the schedulus API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/validation"
)

// DefaultPollInterval is used by WaitForJob when interval is not positive.
const DefaultPollInterval = time.Second

// Client talks to the schedulus REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: validation.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// LatestTimetable returns the newest optimized timetable, or nil when none has completed yet.
func (c *Client) LatestTimetable(ctx context.Context) (*models.Timetable, error) {
	var tt models.Timetable
	if err := c.do(ctx, http.MethodGet, "/schedules/latest", nil, "", &tt); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tt, nil
}

// CurrentTimetable returns the session timetable with its score.
func (c *Client) CurrentTimetable(ctx context.Context) (*models.Timetable, error) {
	var tt models.Timetable
	if err := c.do(ctx, http.MethodGet, "/schedules/current", nil, "", &tt); err != nil {
		return nil, err
	}
	return &tt, nil
}

// Lessons lists the lessons of the session timetable.
func (c *Client) Lessons(ctx context.Context) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if err := c.do(ctx, http.MethodGet, "/lessons", nil, "", &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

// AddLesson validates req locally and creates the lesson.
func (c *Client) AddLesson(ctx context.Context, req dto.CreateLessonRequest) (*models.Lesson, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, validation.Error(err, "")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal lesson: %w", err)
	}
	var lesson models.Lesson
	if err := c.do(ctx, http.MethodPost, "/lessons", bytes.NewReader(body), "application/json", &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// RemoveLesson deletes a lesson by id.
func (c *Client) RemoveLesson(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/lessons/"+url.PathEscape(id), nil, "", nil)
}

// TogglePin flips the pinned flag of a lesson.
func (c *Client) TogglePin(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := c.do(ctx, http.MethodPatch, "/lessons/"+url.PathEscape(id)+"/pin", nil, "", &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ImportLessons uploads a CSV or XLSX file. The server decides the format from filename.
func (c *Client) ImportLessons(ctx context.Context, filename string, r io.Reader) ([]models.Lesson, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	var lessons []models.Lesson
	if err := c.do(ctx, http.MethodPost, "/lessons/import", buf, writer.FormDataContentType(), &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

// SubmitOptimization starts a job. A zero request optimizes the session timetable.
func (c *Client) SubmitOptimization(ctx context.Context, req dto.OptimizationRequest) (*models.OptimizationJob, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal optimization request: %w", err)
	}
	var job models.OptimizationJob
	if err := c.do(ctx, http.MethodPost, "/schedules/optimize", bytes.NewReader(body), "application/json", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobStatus fetches a job by id.
func (c *Client) JobStatus(ctx context.Context, id string) (*models.OptimizationJob, error) {
	var job models.OptimizationJob
	if err := c.do(ctx, http.MethodGet, "/schedules/jobs/"+url.PathEscape(id), nil, "", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls the job every interval until it is terminal.
//
// Any fetch error stops polling and returns the last seen job marked FAILED together with the error:
// transport failures, server errors with or without an envelope and undecodable bodies alike.
// Cancellation of ctx returns the last job unchanged. maxPolls <= 0 polls until ctx is done.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration, maxPolls int) (*models.OptimizationJob, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := &models.OptimizationJob{ID: id, Status: models.JobStatusPending}
	for poll := 1; ; poll++ {
		job, err := c.JobStatus(ctx, id)
		switch {
		case err == nil:
			last = job
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			degraded := last.Clone()
			degraded.Status = models.JobStatusFailed
			msg := err.Error()
			degraded.Error = &msg
			return &degraded, err
		}
		if last.Status.Terminal() {
			return last, nil
		}
		if maxPolls > 0 && poll >= maxPolls {
			return last, fmt.Errorf("job %s still %s after %d polls", id, last.Status, poll)
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, "read response body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env envelope
		if json.Unmarshal(payload, &env) == nil && env.Error != nil {
			env.Error.Status = resp.StatusCode
			return env.Error
		}
		return appErrors.New(statusCode(resp.StatusCode), resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return appErrors.ErrNotFound.Code
	case http.StatusConflict:
		return appErrors.ErrConflict.Code
	case http.StatusBadRequest:
		return appErrors.ErrValidation.Code
	default:
		if status >= http.StatusInternalServerError {
			return appErrors.ErrNetwork.Code
		}
		return appErrors.ErrInternal.Code
	}
}
