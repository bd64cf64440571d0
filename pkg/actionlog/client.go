package actionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Options configures a Client.
type Options struct {
	ServerURL  string
	HTTPClient *http.Client
	// InstanceID is sent as X-Instance-ID. Empty means the id persisted
	// under ~/.actionlog, or a random one.
	InstanceID string

	BatchSize     int
	BatchTimeout  time.Duration
	DefaultStream string
	// OnError receives background delivery failures. Defaults to stderr.
	OnError func(error)
	Now     func() time.Time
}

// Client talks to an actionlog server and owns a batching Queue.
type Client struct {
	baseURL    string
	httpClient *http.Client
	instanceID string
	now        func() time.Time
	queue      *Queue
}

// New constructs a Client for opts.ServerURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.ServerURL)
	if base == "" {
		return nil, fmt.Errorf("%w: server url is required", ErrInvalidArgument)
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: opts.HTTPClient,
		instanceID: opts.InstanceID,
		now:        opts.Now,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if c.instanceID == "" {
		c.instanceID = ensureInstanceID()
	}
	if c.now == nil {
		c.now = time.Now
	}

	onError := opts.OnError
	if onError == nil {
		onError = func(err error) {
			fmt.Fprintf(os.Stderr, "actionlog: background flush failed: %v\n", err)
		}
	}
	c.queue = NewQueue(c, QueueOptions{
		BatchSize:     opts.BatchSize,
		BatchTimeout:  opts.BatchTimeout,
		DefaultStream: opts.DefaultStream,
		OnError:       onError,
		Now:           c.now,
	})
	return c, nil
}

// InstanceID returns the id sent with every request.
func (c *Client) InstanceID() string { return c.instanceID }

// Enqueue adds an entry to the batching queue.
func (c *Client) Enqueue(ctx context.Context, e Entry, stream string) error {
	return c.queue.Enqueue(ctx, e, stream)
}

// Flush delivers every pending batch now.
func (c *Client) Flush(ctx context.Context) error { return c.queue.Flush(ctx) }

// Pending returns the number of queued entries.
func (c *Client) Pending() int { return c.queue.Len() }

// Close flushes the queue and refuses further entries.
func (c *Client) Close(ctx context.Context) error { return c.queue.Close(ctx) }

// SendImmediate delivers one entry without touching the queue.
func (c *Client) SendImmediate(ctx context.Context, e Entry, stream string) error {
	if e.Timestamp == "" {
		e.Timestamp = FormatTime(c.now())
	}
	_, err := c.SendLog(ctx, e, stream)
	return err
}

type saveRequest struct {
	LogData  any    `json:"logData"`
	FileName string `json:"fileName"`
	Mode     string `json:"mode"`
}

// SaveResult is the server's answer to a save.
type SaveResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// SendLog appends a single entry to stream.
func (c *Client) SendLog(ctx context.Context, e Entry, stream string) (SaveResult, error) {
	var out SaveResult
	err := c.do(ctx, http.MethodPost, "/api/logs/save", saveRequest{LogData: e, FileName: c.stream(stream), Mode: "append"}, &out)
	return out, err
}

// SendBatch appends entries to stream in one request.
func (c *Client) SendBatch(ctx context.Context, stream string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/logs/save", saveRequest{LogData: entries, FileName: c.stream(stream), Mode: "append"}, nil)
}

func (c *Client) stream(s string) string {
	if s == "" {
		return c.queue.opts.DefaultStream
	}
	return s
}

// Filter narrows Logs. Zero values are not sent.
type Filter struct {
	Level     Level
	UserName  string
	CompanyID string
	Event     string
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (f Filter) query() string {
	v := url.Values{}
	if f.Level != "" {
		v.Set("level", string(f.Level))
	}
	if f.UserName != "" {
		v.Set("userName", f.UserName)
	}
	if f.CompanyID != "" {
		v.Set("companyId", f.CompanyID)
	}
	if f.Event != "" {
		v.Set("event", f.Event)
	}
	if !f.Since.IsZero() {
		v.Set("since", FormatTime(f.Since))
	}
	if !f.Until.IsZero() {
		v.Set("until", FormatTime(f.Until))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Logs returns indexed entries, newest first.
func (c *Client) Logs(ctx context.Context, f Filter) ([]Entry, error) {
	var out []Entry
	err := c.do(ctx, http.MethodGet, "/api/logs"+f.query(), nil, &out)
	return out, err
}

// FileList is the response of ListFiles.
type FileList struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Files   []string `json:"files"`
}

func (c *Client) ListFiles(ctx context.Context) (FileList, error) {
	var out FileList
	err := c.do(ctx, http.MethodGet, "/api/logs/list", nil, &out)
	return out, err
}

// GetFile returns the stored file exactly as it is on disk.
func (c *Client) GetFile(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/logs/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "read response", Err: err}
	}
	return data, nil
}

func (c *Client) DeleteFile(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/logs/"+url.PathEscape(name), nil, nil)
}

// CleanupResult reports the files removed by an on-demand sweep.
type CleanupResult struct {
	Success      bool     `json:"success"`
	DeletedCount int      `json:"deletedCount"`
	DeletedFiles []string `json:"deletedFiles"`
	Message      string   `json:"message"`
}

func (c *Client) Cleanup(ctx context.Context) (CleanupResult, error) {
	var out CleanupResult
	err := c.do(ctx, http.MethodPost, "/api/logs/cleanup", nil, &out)
	return out, err
}

// UploadResult is the response of Upload.
type UploadResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
	FileName string `json:"fileName"`
}

// Upload imports entries into a new file. An empty fileName lets the server
// pick one.
func (c *Client) Upload(ctx context.Context, entries []Entry, fileName string) (UploadResult, error) {
	body := struct {
		LogsData []Entry `json:"logsData"`
		FileName string  `json:"fileName,omitempty"`
	}{entries, fileName}

	var out UploadResult
	err := c.do(ctx, http.MethodPost, "/api/logs/upload", body, &out)
	return out, err
}

// Stats mirrors the server's index statistics.
type Stats struct {
	TotalEntries int            `json:"totalEntries"`
	Files        int            `json:"files"`
	Users        int            `json:"users"`
	DiskUsage    int64          `json:"diskUsage"`
	LevelDist    map[string]int `json:"levelDist"`
	TopCompanies map[string]int `json:"topCompanies"`
	TopEvents    map[string]int `json:"topEvents"`
	Newest       string         `json:"newest,omitempty"`
	Oldest       string         `json:"oldest,omitempty"`
	RebuiltAt    time.Time      `json:"rebuiltAt"`
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, "/api/logs/stats", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransportError{Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// send performs the request and turns non-2xx responses into
// TransportError. The caller closes the body on success.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Instance-ID", c.instanceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Message: "perform request", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	return resp, nil
}

func extractError(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Details != "" {
		return payload.Error + ": " + payload.Details
	}
	return strings.TrimSpace(payload.Error)
}
