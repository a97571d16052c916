package orthanc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aide-monitoring/workflow-tracker/pkg/metrics"
	"github.com/pkg/errors"
)

const (
	// JobTimeout bounds a single job-status call made by the poller.
	JobTimeout = 5 * time.Second
	// ExistenceTimeout bounds a single study existence check made while aggregating.
	ExistenceTimeout = 2 * time.Second
)

// ErrNotFound is returned when Orthanc answers 404 for the requested resource.
var ErrNotFound = errors.New("resource not found in orthanc")

// Client is an HTTP client for the Orthanc REST API.
type Client struct {
	name       string
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

// NewClient creates a client authenticating with basic auth when user is set.
// name labels the client in metrics and logs ("gateway" for job polling, "upstream" for existence checks).
func NewClient(name, baseURL, user, password string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = JobTimeout
	}
	return &Client{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJob returns the state of an Orthanc job. ErrNotFound means the job was purged upstream.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, "/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StudyExists is false only when Orthanc answers 404. Any other answer counts as present;
// transport errors are returned to the caller, which decides how to degrade.
func (c *Client) StudyExists(ctx context.Context, studyID string) (bool, error) {
	resp, err := c.do(ctx, "/studies/"+url.PathEscape(studyID))
	if err != nil {
		return false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Drain body to enable connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode != http.StatusNotFound, nil
}

// ListStudies returns the Orthanc identifiers of every stored study.
func (c *Client) ListStudies(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/studies", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) GetStudy(ctx context.Context, studyID string) (*Study, error) {
	var study Study
	if err := c.getJSON(ctx, "/studies/"+url.PathEscape(studyID), &study); err != nil {
		return nil, err
	}
	if study.ID == "" {
		study.ID = studyID
	}
	return &study, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("orthanc returned status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s", path)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncreaseUpstreamRequestsMetric(c.name, "error")
		return nil, errors.Wrapf(err, "failed to call orthanc %s", c.name)
	}
	metrics.IncreaseUpstreamRequestsMetric(c.name, statusClass(resp.StatusCode))
	return resp, nil
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
