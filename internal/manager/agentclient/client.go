// Package agentclient implements the manager's HTTP client to a single
// agent: bearer-token-authenticated requests against the Agent HTTP
// Surface (spec.md C5), plus the polling loop that waits for an async
// job to reach a terminal state. Grounded on
// original_source/manager/src/constants.rs's http:: timeouts and
// internal/alerting/webhook.go's raw net/http + context usage (the
// teacher has no equivalent internal API client, since it talks to the
// Kubernetes API instead of peer HTTP servers).
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

const (
	requestTimeout  = 30 * time.Second
	connectTimeout  = 10 * time.Second
	jobPollInterval = 10 * time.Second
	maxJobWait      = 86400 * time.Second
)

// Client talks to one agent's HTTP surface.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a Client for an agent reachable at baseURL (e.g.
// "http://10.0.0.5:8745"), authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// envelope mirrors the agent's JSON response shape (internal/agent/api/types.go).
type envelope struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	Output        string          `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	Status        string          `json:"status,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds,omitempty"`
	Filename      string          `json:"filename,omitempty"`
	SizeBytes     int64           `json:"size_bytes,omitempty"`
	Path          string          `json:"path,omitempty"`
	Compression   string          `json:"compression,omitempty"`
	JobID         string          `json:"job_id,omitempty"`
}

// do sends a JSON request to path and decodes the envelope. A non-2xx
// response is surfaced as an UpstreamFailed error carrying the envelope's
// error text.
func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Upstream(method+" "+path, err.Error())
	}
	defer resp.Body.Close()

	var env envelope
	if decErr := json.NewDecoder(resp.Body).Decode(&env); decErr != nil {
		return nil, apperrors.Upstream(method+" "+path, "malformed response: "+decErr.Error())
	}

	if resp.StatusCode >= 400 {
		return &env, apperrors.Upstream(method+" "+path, env.Error)
	}
	return &env, nil
}

// Command runs a synchronous shell command on the agent.
func (c *Client) Command(ctx context.Context, command string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/command/execute", map[string]string{"command": command})
	if err != nil {
		return "", err
	}
	return env.Output, nil
}

// ServiceStatus returns the agent's systemctl is-active value.
func (c *Client) ServiceStatus(ctx context.Context, serviceName string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/service/status", map[string]string{"service_name": serviceName})
	if err != nil {
		return "", err
	}
	return env.Status, nil
}

// StopService stops a systemd unit synchronously.
func (c *Client) StopService(ctx context.Context, serviceName string) error {
	_, err := c.do(ctx, http.MethodPost, "/service/stop", map[string]string{"service_name": serviceName})
	return err
}

// StartService starts a systemd unit synchronously.
func (c *Client) StartService(ctx context.Context, serviceName string) error {
	_, err := c.do(ctx, http.MethodPost, "/service/start", map[string]string{"service_name": serviceName})
	return err
}

// CheckTriggers asks the agent whether logPath's last 1000 lines match
// any of triggerWords, backing the Health Monitor's auto-restore path.
func (c *Client) CheckTriggers(ctx context.Context, logPath string, triggerWords []string) (bool, error) {
	env, err := c.do(ctx, http.MethodPost, "/snapshot/check-triggers", map[string]any{
		"log_path":      logPath,
		"trigger_words": triggerWords,
	})
	if err != nil {
		return false, err
	}
	var found bool
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &found); err != nil {
			return false, fmt.Errorf("decoding check-triggers response: %w", err)
		}
	}
	return found, nil
}

// StartAsync POSTs to one of the four async operation endpoints and
// returns the job id the agent assigned.
func (c *Client) StartAsync(ctx context.Context, endpoint string, body any) (string, error) {
	env, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	return env.JobID, nil
}

// JobResult is the terminal state of a polled job.
type JobResult struct {
	Status string
	Data   json.RawMessage
	Error  string
}

// WaitForJob polls GET /operation/status/{jobID} every 10 seconds until
// it reports a terminal status or timeout elapses, per
// original_source/manager/src/constants.rs's JOB_POLL_INTERVAL and
// MAX_JOB_WAIT (capped further by the caller's operation-class deadline).
func (c *Client) WaitForJob(ctx context.Context, jobID string, timeout time.Duration) (JobResult, error) {
	if timeout <= 0 || timeout > maxJobWait {
		timeout = maxJobWait
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		env, err := c.do(ctx, http.MethodGet, "/operation/status/"+jobID, nil)
		if err == nil {
			switch env.Status {
			case "completed":
				return JobResult{Status: env.Status, Data: env.Data}, nil
			case "failed":
				return JobResult{Status: env.Status, Error: env.Error}, apperrors.Upstream("job "+jobID, env.Error)
			}
		}

		if time.Now().After(deadline) {
			return JobResult{}, apperrors.TimeoutAfter("job "+jobID, timeout.String())
		}

		select {
		case <-ctx.Done():
			return JobResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
