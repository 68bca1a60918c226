// Package aria2 talks to an aria2 engine over its JSON-RPC interface
package aria2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// ErrEngineUnavailable is returned when the engine cannot be reached
var ErrEngineUnavailable = errors.New("download engine unavailable")

// StatusKeys are the fields requested from tellStatus and tellActive
var StatusKeys = []string{
	"gid", "status", "connections", "errorCode", "errorMessage", "downloadSpeed",
	"dir", "totalLength", "completedLength", "files",
}

// Status is an engine status reply. The engine encodes every number as a string.
type Status struct {
	GID             string `json:"gid"`
	Status          string `json:"status"`
	TotalLength     string `json:"totalLength"`
	CompletedLength string `json:"completedLength"`
	DownloadSpeed   string `json:"downloadSpeed"`
	Connections     string `json:"connections"`
	ErrorCode       string `json:"errorCode"`
	ErrorMessage    string `json:"errorMessage"`
	Dir             string `json:"dir"`
	Files           []File `json:"files"`
}

// File is one file of a download
type File struct {
	Index           string `json:"index"`
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
	Selected        string `json:"selected"`
	URIs            []URI  `json:"uris"`
}

// URI is one source of a file
type URI struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

// Version is the reply of getVersion
type Version struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

// Client is a JSON-RPC client for aria2. It is safe for concurrent use.
type Client struct {
	url     string
	secret  string
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	rpc *jrpc2.Client
}

// NewClient creates a client for the engine at url. Each call is bounded by timeout.
func NewClient(url, secret string, timeout time.Duration) *Client {
	c := &Client{
		url:     url,
		secret:  secret,
		timeout: timeout,
		logger:  slog.Default(),
	}
	c.rpc = c.dial()
	return c
}

func (c *Client) dial() *jrpc2.Client {
	return jrpc2.NewClient(jhttp.NewChannel(c.url, nil), nil)
}

// Close releases the underlying connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rpc.Close()
}

// GetVersion returns the engine version string
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var v Version
	if err := c.call(ctx, "aria2.getVersion", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// AddURI submits a download and returns its gid
func (c *Client) AddURI(ctx context.Context, uris []string, options map[string]any) (string, error) {
	var gid string
	if err := c.call(ctx, "aria2.addUri", &gid, uris, options); err != nil {
		return "", err
	}
	return gid, nil
}

// TellStatus returns the status of gid
func (c *Client) TellStatus(ctx context.Context, gid string) (*Status, error) {
	var status Status
	if err := c.call(ctx, "aria2.tellStatus", &status, gid, StatusKeys); err != nil {
		return nil, err
	}
	if status.GID == "" {
		status.GID = gid
	}
	return &status, nil
}

// TellActive returns the status of every active download
func (c *Client) TellActive(ctx context.Context) ([]Status, error) {
	var statuses []Status
	if err := c.call(ctx, "aria2.tellActive", &statuses, StatusKeys); err != nil {
		return nil, err
	}
	return statuses, nil
}

// ActiveGIDs returns the gids the engine is currently working on
func (c *Client) ActiveGIDs(ctx context.Context) ([]string, error) {
	var statuses []Status
	if err := c.call(ctx, "aria2.tellActive", &statuses, []string{"gid"}); err != nil {
		return nil, err
	}

	gids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		gids = append(gids, s.GID)
	}
	return gids, nil
}

// Pause pauses gid
func (c *Client) Pause(ctx context.Context, gid string) error {
	return c.gidCall(ctx, "aria2.pause", gid)
}

// Unpause resumes gid
func (c *Client) Unpause(ctx context.Context, gid string) error {
	return c.gidCall(ctx, "aria2.unpause", gid)
}

// Remove stops gid
func (c *Client) Remove(ctx context.Context, gid string) error {
	return c.gidCall(ctx, "aria2.remove", gid)
}

// RemoveDownloadResult drops the engine's record of a finished gid
func (c *Client) RemoveDownloadResult(ctx context.Context, gid string) error {
	var ok string
	return c.call(ctx, "aria2.removeDownloadResult", &ok, gid)
}

// ChangeOption changes options of a running download
func (c *Client) ChangeOption(ctx context.Context, gid string, options map[string]any) error {
	var ok string
	return c.call(ctx, "aria2.changeOption", &ok, gid, options)
}

// Shutdown asks the engine to exit
func (c *Client) Shutdown(ctx context.Context) error {
	var ok string
	return c.call(ctx, "aria2.shutdown", &ok)
}

func (c *Client) gidCall(ctx context.Context, method, gid string) error {
	var reply string
	return c.call(ctx, method, &reply, gid)
}

func (c *Client) call(ctx context.Context, method string, result any, params ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := make([]any, 0, len(params)+1)
	if c.secret != "" {
		args = append(args, "token:"+c.secret)
	}
	args = append(args, params...)

	c.mu.Lock()
	rpc := c.rpc
	c.mu.Unlock()

	err := rpc.CallResult(ctx, method, args, result)
	if err == nil {
		return nil
	}

	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s failed: %w", method, err)
	}

	c.reconnect(rpc)
	return fmt.Errorf("%s failed: %w: %v", method, ErrEngineUnavailable, err)
}

// reconnect replaces a client whose transport failed, unless another caller already did
func (c *Client) reconnect(failed *jrpc2.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpc != failed {
		return
	}
	failed.Close()
	c.rpc = c.dial()
	c.logger.Debug("Reconnected to download engine", "url", c.url)
}
