package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// Resource paths understood by the camera's res.php endpoint.
const (
	resFusionMode = ".image.sysimg.fusion.fusionData.fusionMode"
	resHideGraph  = ".resmon.config.hideGraphics"
	resAdjMode    = ".image.contadj.adjMode"
)

// Fusion modes.
const (
	fusionIR     = "1"
	fusionVisual = "3"
)

// Config holds the connection settings of a FLIR camera.
type Config struct {
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
}

// FLIR is a Camera backed by the HTTP interface of FLIR Ax8-class cameras.
type FLIR struct {
	base   *url.URL
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewFLIR prepares a client; no request is made until Login.
func NewFLIR(cfg Config) (*FLIR, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("camera url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("camera url %q: missing scheme or host", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &FLIR{
		base:   base,
		cfg:    cfg,
		client: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

func (c *FLIR) endpoint(p string) string {
	return c.base.ResolveReference(&url.URL{Path: p}).String()
}

// Login opens a session. The camera answers with a session cookie kept in
// the client's jar.
func (c *FLIR) Login(ctx context.Context) error {
	form := url.Values{
		"user_name":     {c.cfg.User},
		"user_password": {c.cfg.Password},
	}
	if err := c.post(ctx, "login/dologin", form); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	slog.Debug("camera session opened", "url", c.base.String())
	return nil
}

func (c *FLIR) SetVisualMode(ctx context.Context) error {
	return c.set(ctx, resFusionMode, fusionVisual)
}

func (c *FLIR) SetIRMode(ctx context.Context) error {
	return c.set(ctx, resFusionMode, fusionIR)
}

func (c *FLIR) ShowOverlay(ctx context.Context, show bool) error {
	return c.set(ctx, resHideGraph, fmt.Sprint(!show))
}

func (c *FLIR) SetAutoTemperatureRange(ctx context.Context) error {
	return c.set(ctx, resAdjMode, "auto")
}

// Snapshot downloads the current image to path. A partial file is removed
// on failure.
func (c *FLIR) Snapshot(ctx context.Context, path string) (err error) {
	if err := c.requireSession(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("snapshot.jpg"), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	if _, err = io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	return nil
}

// Close drops the session cookie.
func (c *FLIR) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	c.client.CloseIdleConnections()
	if jar, err := cookiejar.New(nil); err == nil {
		c.client.Jar = jar
	}
	return nil
}

func (c *FLIR) requireSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *FLIR) set(ctx context.Context, resource, value string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	form := url.Values{
		"action":   {"set"},
		"resource": {resource},
		"value":    {value},
	}
	if err := c.post(ctx, "res.php", form); err != nil {
		return fmt.Errorf("set %s=%s: %w", resource, value, err)
	}
	return nil
}

func (c *FLIR) post(ctx context.Context, p string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(p), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
