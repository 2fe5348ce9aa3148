package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/api"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/config"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/lambdatest"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/provider"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/tunnel"
)

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	var newLog string
	newLog = fmt.Sprintf("[%s] [%s] [%s:%d] %s\n", timestamp, entry.Level, path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)

	b.WriteString(newLog)
	return b.Bytes(), nil
}

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
	log.SetReportCaller(true)
	log.SetFormatter(&LogFormatter{})
}

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Load configuration error: %v", err)
		return
	}
	if !cfg.Debug {
		log.SetLevel(log.InfoLevel)
	}

	log.Info("Starting LambdaTest browser provider...")

	client := lambdatest.NewClient(log.StandardLogger(), cfg.Username, cfg.AccessKey, cfg.APIURL)

	var tun *tunnel.Tunnel
	if cfg.Tunnel.Enabled {
		tun = tunnel.New(cfg.Username, cfg.AccessKey, cfg.Tunnel, cfg.Debug)
	}

	browserProvider, err := provider.New(cfg, client, tun)
	if err != nil {
		log.Fatalf("could not create browser provider: %v", err)
		return
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 60*time.Second)
	if err = browserProvider.Init(initCtx); err != nil {
		cancelInit()
		log.Fatalf("could not initialize browser provider: %v", err)
		return
	}
	cancelInit()

	// Create API server configuration
	apiConfig := &api.ServerConfig{
		Port:     cfg.ApiPort,
		Debug:    cfg.Debug,
		Provider: browserProvider,
	}

	// Create API server
	apiServer := api.NewServer(apiConfig)

	// Start API server
	go func() {
		log.Infof("Starting API server on port %s", apiConfig.Port)
		if err = apiServer.Start(); err != nil {
			log.Fatalf("API server failed to start: %v", err)
			return
		}
	}()

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Debugf("Received shutdown signal. Cleaning up...")

	// Create shutdown context
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop API server
	if err = apiServer.Stop(ctx); err != nil {
		log.Debugf("Error stopping API server: %v", err)
	}

	// Close remaining sessions and the tunnel
	if err = browserProvider.Dispose(ctx); err != nil {
		log.Debugf("Error disposing browser provider: %v", err)
	}

	log.Debugf("Cleanup completed. Exiting...")
}
