// Package provider implements the browser-session lifecycle a test runner
// delegates to the remote grid: open, resize, screenshot, close, report.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/capabilities"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/config"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/lambdatest"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/tunnel"
)

// ErrSessionExists is returned when a browser is opened under an id that is
// already in use.
var ErrSessionExists = errors.New("session id is already in use")

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Driver is the slice of the remote WebDriver client the provider needs.
// The full protocol lives in the client library.
type Driver interface {
	Get(url string) error
	Title() (string, error)
	Screenshot() ([]byte, error)
	ResizeWindow(handle string, width, height int) error
	MaximizeWindow(handle string) error
	SessionID() string
	Quit() error
}

// Dialer opens a remote WebDriver session against the hub.
type Dialer func(caps map[string]interface{}, hubURL string) (Driver, error)

func dialRemote(caps map[string]interface{}, hubURL string) (Driver, error) {
	return selenium.NewRemote(selenium.Capabilities(caps), hubURL)
}

type session struct {
	id       string
	remoteID string
	driver   Driver
	stop     chan struct{}
}

// Provider owns the id to remote-session mapping and the tunnel shared by
// all sessions.
type Provider struct {
	cfg          *config.AppConfig
	api          *lambdatest.Client
	tunnel       *tunnel.Tunnel
	dial         Dialer
	hubURL       string
	pingInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// Option customizes a Provider.
type Option func(*Provider)

// WithDialer overrides how remote sessions are dialed.
func WithDialer(dial Dialer) Option {
	return func(p *Provider) {
		p.dial = dial
	}
}

// WithPingInterval overrides the keepalive interval.
func WithPingInterval(interval time.Duration) Option {
	return func(p *Provider) {
		p.pingInterval = interval
	}
}

// New creates a provider. The tunnel may be nil when the pages under test
// are publicly reachable.
func New(cfg *config.AppConfig, api *lambdatest.Client, tun *tunnel.Tunnel, options ...Option) (*Provider, error) {
	hubURL, err := hubURLWithAuth(cfg.GridURL, cfg.Username, cfg.AccessKey)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		cfg:          cfg,
		api:          api,
		tunnel:       tun,
		dial:         dialRemote,
		hubURL:       hubURL,
		pingInterval: time.Duration(cfg.PingIntervalSeconds) * time.Second,
		sessions:     make(map[string]*session),
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// Init validates the configured credentials and connects the tunnel when
// one is configured.
func (p *Provider) Init(ctx context.Context) error {
	user, err := p.api.User(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %v", err)
	}
	log.Infof("Authenticated against the grid as %s", user.Username)

	if p.tunnel != nil {
		if err = p.tunnel.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect tunnel: %v", err)
		}
	}
	return nil
}

// OpenBrowser dials a remote session for the given browser selector,
// navigates it to pageURL and registers it under id.
func (p *Provider) OpenBrowser(id, pageURL, browserName string) error {
	p.mu.Lock()
	_, exists := p.sessions[id]
	p.mu.Unlock()
	if exists {
		return ErrSessionExists
	}

	caps, err := capabilities.Build(browserName, p.capabilityOptions(id))
	if err != nil {
		return err
	}

	driver, err := p.dial(caps, p.hubURL)
	if err != nil {
		return fmt.Errorf("failed to open remote session for %q: %v", browserName, err)
	}

	if err = driver.Get(pageURL); err != nil {
		if qErr := driver.Quit(); qErr != nil {
			log.Debugf("Error quitting half-open session %s: %v", id, qErr)
		}
		return fmt.Errorf("failed to navigate session %s to %s: %v", id, pageURL, err)
	}

	s := &session{
		id:       id,
		remoteID: driver.SessionID(),
		driver:   driver,
		stop:     make(chan struct{}),
	}

	p.mu.Lock()
	if _, exists = p.sessions[id]; exists {
		p.mu.Unlock()
		if qErr := driver.Quit(); qErr != nil {
			log.Debugf("Error quitting duplicate session %s: %v", id, qErr)
		}
		return ErrSessionExists
	}
	p.sessions[id] = s
	p.mu.Unlock()

	go p.keepAlive(s)
	log.Infof("Opened browser %q as session %s (remote %s)", browserName, id, s.remoteID)
	return nil
}

// CloseBrowser quits the remote session registered under id.
func (p *Provider) CloseBrowser(id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	close(s.stop)
	if err := s.driver.Quit(); err != nil {
		return fmt.Errorf("failed to close session %s: %v", id, err)
	}
	log.Infof("Closed session %s", id)
	return nil
}

// ResizeWindow resizes the session's current window.
func (p *Provider) ResizeWindow(id string, width, height int) error {
	s, err := p.session(id)
	if err != nil {
		return err
	}
	if err = s.driver.ResizeWindow("", width, height); err != nil {
		return fmt.Errorf("failed to resize session %s: %v", id, err)
	}
	return nil
}

// MaximizeWindow maximizes the session's current window.
func (p *Provider) MaximizeWindow(id string) error {
	s, err := p.session(id)
	if err != nil {
		return err
	}
	if err = s.driver.MaximizeWindow(""); err != nil {
		return fmt.Errorf("failed to maximize session %s: %v", id, err)
	}
	return nil
}

// TakeScreenshot captures the session's viewport as PNG, writes it to path
// and returns the image bytes.
func (p *Provider) TakeScreenshot(id, path string) ([]byte, error) {
	s, err := p.session(id)
	if err != nil {
		return nil, err
	}

	png, err := s.driver.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot of session %s: %v", id, err)
	}
	if path != "" {
		if err = saveFile(path, png); err != nil {
			return nil, err
		}
	}
	return png, nil
}

// ReportJobResult reports the final result of the session to the vendor
// job-status API. Unknown statuses are reported as failed.
func (p *Provider) ReportJobResult(ctx context.Context, id, status, remark string) error {
	s, err := p.session(id)
	if err != nil {
		return err
	}

	update := lambdatest.SessionUpdate{StatusInd: jobStatus(status)}
	if remark != "" {
		update.Name = remark
	}
	if err = p.api.UpdateSessionStatus(ctx, s.remoteID, update); err != nil {
		return fmt.Errorf("failed to report result for session %s: %v", id, err)
	}
	log.Debugf("Reported session %s as %s", id, update.StatusInd)
	return nil
}

// BrowserList returns the browser@version:os selectors the grid offers.
func (p *Provider) BrowserList(ctx context.Context) ([]string, error) {
	return p.api.BrowserNames(ctx)
}

// ActiveSessions returns the ids of all open sessions.
func (p *Provider) ActiveSessions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Dispose closes every remaining session and destroys the tunnel. It keeps
// going on errors and returns the first one.
func (p *Provider) Dispose(ctx context.Context) error {
	var firstErr error
	for _, id := range p.ActiveSessions() {
		if err := p.CloseBrowser(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Debugf("Error closing session %s during dispose: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if p.tunnel != nil {
		if err := p.tunnel.Destroy(); err != nil {
			log.Debugf("Error destroying tunnel: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Provider) session(id string) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// keepAlive pings the remote session on an interval so the grid does not
// idle it out between runner commands.
func (p *Provider) keepAlive(s *session) {
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if _, err := s.driver.Title(); err != nil {
				log.Debugf("Keepalive ping for session %s failed: %v", s.id, err)
			}
		}
	}
}

func (p *Provider) capabilityOptions(id string) capabilities.Options {
	opts := capabilities.Options{
		Build:           p.cfg.Capabilities.Build,
		Name:            id,
		Resolution:      p.cfg.Capabilities.Resolution,
		SeleniumVersion: p.cfg.Capabilities.SeleniumVersion,
		Timezone:        p.cfg.Capabilities.Timezone,
		Video:           p.cfg.Capabilities.Video,
		Console:         p.cfg.Capabilities.Console,
		Network:         p.cfg.Capabilities.Network,
		Path:            p.cfg.Capabilities.Path,
	}
	if p.tunnel != nil {
		opts.Tunnel = true
		opts.TunnelName = p.tunnel.Name()
	}
	return opts
}

func jobStatus(status string) string {
	switch status {
	case lambdatest.StatusPassed:
		return lambdatest.StatusPassed
	case "errored", lambdatest.StatusError:
		return lambdatest.StatusError
	case "aborted", lambdatest.StatusIgnored:
		return lambdatest.StatusIgnored
	default:
		return lambdatest.StatusFailed
	}
}

func hubURLWithAuth(gridURL, username, accessKey string) (string, error) {
	parsed, err := url.Parse(gridURL)
	if err != nil {
		return "", fmt.Errorf("invalid grid URL %s: %v", gridURL, err)
	}
	parsed.User = url.UserPassword(username, accessKey)
	return parsed.String(), nil
}

func saveFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create screenshot directory %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %v", path, err)
	}
	return nil
}
