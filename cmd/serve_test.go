package cmd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mcclink/mcclink/internal/config"
	"github.com/mcclink/mcclink/internal/server"
)

type fakeServeRunner struct {
	startFn func() error
	stopFn  func(ctx context.Context) error
}

func (f *fakeServeRunner) Start() error {
	if f.startFn != nil {
		return f.startFn()
	}
	return nil
}

func (f *fakeServeRunner) Stop(ctx context.Context) error {
	if f.stopFn != nil {
		return f.stopFn(ctx)
	}
	return nil
}

func setServeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_ADS_DEVELOPER_TOKEN", "dev-token")
}

func stubServeHooks(t *testing.T) {
	t.Helper()
	origNewServeServer := newServeServer
	origBuildServeDeps := buildServeDeps
	origSignalNotifyContext := signalNotifyContext
	origHost, origPort := serveHost, servePort
	t.Cleanup(func() {
		newServeServer = origNewServeServer
		buildServeDeps = origBuildServeDeps
		signalNotifyContext = origSignalNotifyContext
		serveHost, servePort = origHost, origPort
	})

	buildServeDeps = func(context.Context, *config.Config) (server.Deps, func(), error) {
		return server.Deps{}, func() {}, nil
	}
}

func TestRunServeStartReturns(t *testing.T) {
	stubServeHooks(t)
	setServeEnv(t)

	serveHost = "127.0.0.1"
	servePort = 19000

	var capturedCfg *config.Config
	newServeServer = func(cfg *config.Config, _ server.Deps) serveRunner {
		copied := *cfg
		capturedCfg = &copied
		return &fakeServeRunner{
			startFn: func() error { return nil },
		}
	}

	if err := runServe(nil, nil); err != nil {
		t.Fatalf("runServe error: %v", err)
	}
	if capturedCfg == nil {
		t.Fatal("newServeServer was not called")
	}
	if capturedCfg.Host != "127.0.0.1" || capturedCfg.Port != 19000 {
		t.Fatalf("unexpected cfg overrides: %+v", *capturedCfg)
	}
}

func TestRunServeShutdownPath(t *testing.T) {
	stubServeHooks(t)
	setServeEnv(t)

	stopCh := make(chan struct{})
	newServeServer = func(*config.Config, server.Deps) serveRunner {
		return &fakeServeRunner{
			startFn: func() error {
				<-stopCh
				return nil
			},
			stopFn: func(ctx context.Context) error {
				close(stopCh)
				return nil
			},
		}
	}

	signalNotifyContext = func(parent context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, func() {}
	}

	if err := runServe(nil, nil); err != nil {
		t.Fatalf("runServe shutdown path error: %v", err)
	}
}

func TestRunServeCleanupRuns(t *testing.T) {
	stubServeHooks(t)
	setServeEnv(t)

	var cleaned bool
	buildServeDeps = func(context.Context, *config.Config) (server.Deps, func(), error) {
		return server.Deps{}, func() { cleaned = true }, nil
	}
	newServeServer = func(*config.Config, server.Deps) serveRunner {
		return &fakeServeRunner{
			startFn: func() error {
				time.Sleep(10 * time.Millisecond)
				return nil
			},
		}
	}

	if err := runServe(nil, nil); err != nil {
		t.Fatalf("runServe error: %v", err)
	}
	if !cleaned {
		t.Fatal("dependency cleanup not invoked")
	}
}

func TestRunServeMissingConfig(t *testing.T) {
	stubServeHooks(t)
	t.Setenv("MONGODB_URI", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_ADS_DEVELOPER_TOKEN", "")

	err := runServe(nil, nil)
	if err == nil {
		t.Fatal("expected missing config error, got nil")
	}
	if !strings.Contains(err.Error(), "MONGODB_URI") {
		t.Fatalf("unexpected error: %v", err)
	}
}
