// Package tunnel manages the lifecycle of the vendor tunnel binary that
// exposes locally hosted pages to the remote grid. The tunneling protocol
// itself lives in the binary, this package only starts and stops it.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/config"
)

const (
	// DefaultBinary is the tunnel executable looked up on PATH when no
	// explicit path is configured.
	DefaultBinary = "LT"
	// DefaultInfoAPIPort is the local status port of the tunnel binary.
	DefaultInfoAPIPort = 8000

	readyTimeout  = 45 * time.Second
	readyInterval = 500 * time.Millisecond
	stopGrace     = 5 * time.Second
)

// Tunnel supervises one tunnel binary process.
type Tunnel struct {
	username  string
	accessKey string
	cfg       config.AppConfigTunnel
	debug     bool

	cmd     *exec.Cmd
	exited  chan error
	infoURL string
	client  *http.Client
}

// New creates a tunnel supervisor for the given credentials and settings.
func New(username, accessKey string, cfg config.AppConfigTunnel, debug bool) *Tunnel {
	if cfg.Path == "" {
		cfg.Path = DefaultBinary
	}
	if cfg.InfoAPIPort == 0 {
		cfg.InfoAPIPort = DefaultInfoAPIPort
	}
	return &Tunnel{
		username:  username,
		accessKey: accessKey,
		cfg:       cfg,
		debug:     debug,
		infoURL:   fmt.Sprintf("http://127.0.0.1:%d/api/v1.0/info", cfg.InfoAPIPort),
		client:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Name returns the tunnel name sessions must reference in their capabilities.
func (t *Tunnel) Name() string {
	return t.cfg.Name
}

// Args builds the command line handed to the tunnel binary.
func (t *Tunnel) Args() []string {
	args := []string{
		"--user", t.username,
		"--key", t.accessKey,
		"--infoAPIPort", strconv.Itoa(t.cfg.InfoAPIPort),
	}
	if t.cfg.Name != "" {
		args = append(args, "--tunnelName", t.cfg.Name)
	}
	if t.cfg.Proxy != "" {
		args = append(args, "--proxy", t.cfg.Proxy)
	}
	if t.cfg.LogFile != "" {
		args = append(args, "--logFile", t.cfg.LogFile)
	}
	if t.debug {
		args = append(args, "--verbose")
	}
	return args
}

// Connect starts the tunnel binary and waits until its info endpoint
// reports it is up, or the context expires.
func (t *Tunnel) Connect(ctx context.Context) error {
	if t.cmd != nil {
		return fmt.Errorf("tunnel is already connected")
	}

	cmd := exec.Command(t.cfg.Path, t.Args()...)
	if t.debug {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tunnel binary %s: %v", t.cfg.Path, err)
	}
	log.Debugf("Tunnel binary started, pid %d", cmd.Process.Pid)

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	deadline := time.NewTimer(readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(readyInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.kill(cmd, exited)
			return ctx.Err()
		case err := <-exited:
			return fmt.Errorf("tunnel binary exited before becoming ready: %v", err)
		case <-deadline.C:
			t.kill(cmd, exited)
			return fmt.Errorf("tunnel did not become ready within %s", readyTimeout)
		case <-tick.C:
			if t.ready(ctx) {
				t.cmd = cmd
				t.exited = exited
				log.Infof("Tunnel is ready on info port %d", t.cfg.InfoAPIPort)
				return nil
			}
		}
	}
}

// Destroy stops the tunnel binary. It is a no-op when nothing is running.
func (t *Tunnel) Destroy() error {
	if t.cmd == nil {
		return nil
	}
	cmd := t.cmd
	exited := t.exited
	t.cmd = nil
	t.exited = nil

	// The binary may have crashed or exited on its own after becoming
	// ready. That leaves nothing to stop.
	select {
	case <-exited:
		log.Debug("Tunnel binary had already exited")
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-exited
			return nil
		}
		if kErr := cmd.Process.Kill(); kErr != nil && !errors.Is(kErr, os.ErrProcessDone) {
			return fmt.Errorf("failed to stop tunnel binary: %v", kErr)
		}
		<-exited
		return nil
	}

	select {
	case <-exited:
	case <-time.After(stopGrace):
		log.Debug("Tunnel did not stop in time, killing it")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill tunnel binary: %v", err)
		}
		<-exited
	}
	return nil
}

func (t *Tunnel) ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.infoURL, nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (t *Tunnel) kill(cmd *exec.Cmd, exited chan error) {
	if err := cmd.Process.Kill(); err != nil {
		log.Debugf("Error killing tunnel binary: %v", err)
	}
	<-exited
}
