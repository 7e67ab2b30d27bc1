// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/log"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testServerConfig(addr string) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:        addr,
		ReadHeaderTimeout: time.Second,
		IdleTimeout:       10 * time.Second,
		ShutdownTimeout:   2 * time.Second,
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     zerolog.Nop(),
		APIHandler: http.NotFoundHandler(),
	})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(testServerConfig("127.0.0.1:0"), Deps{Logger: log.WithComponent("test")})
	require.ErrorIs(t, err, ErrMissingAPIHandler)

	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManagerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	workerStopped := make(chan struct{})
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		Workers: []Worker{{
			Name: "idle",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				close(workerStopped)
				return ctx.Err()
			},
		}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	<-workerStopped
	assert.ErrorIs(t, mgr.Start(context.Background()), ErrManagerStarted)
}

func TestManagerShutdownOrder(t *testing.T) {
	addr := reserveListenAddr(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		Workers: []Worker{{Name: "w", Run: func(ctx context.Context) error {
			<-ctx.Done()
			record("worker")
			return nil
		}}},
		Drain: func(context.Context) error {
			record("drain")
			return nil
		},
	})
	require.NoError(t, err)
	mgr.RegisterShutdownHook("first", func(context.Context) error { record("first"); return nil })
	mgr.RegisterShutdownHook("second", func(context.Context) error { record("second"); return nil })
	mgr.RegisterShutdownHook("broken", func(context.Context) error { return errors.New("boom") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))
	cancel()

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook broken: boom")
	assert.Equal(t, []string{"drain", "worker", "second", "first"}, order)
}

func TestManagerWorkerFailureStopsStart(t *testing.T) {
	addr := reserveListenAddr(t)
	boom := errors.New("sweeper exploded")
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		Workers: []Worker{{Name: "sweeper", Run: func(context.Context) error {
			return boom
		}}},
	})
	require.NoError(t, err)

	select {
	case err := <-startAsync(mgr):
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "worker sweeper")
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after worker failure")
	}
}

func TestManagerListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	mgr, err := NewManager(testServerConfig(ln.Addr().String()), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func startAsync(mgr Manager) <-chan error {
	done := make(chan error, 1)
	go func() { done <- mgr.Start(context.Background()) }()
	return done
}
