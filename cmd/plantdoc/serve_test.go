package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestServe_WaitsForInFlightRequestBeforeReturning(t *testing.T) {
	ln := listenLocal(t)

	started := make(chan struct{})
	var finished atomic.Bool
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(150 * time.Millisecond)
		finished.Store(true)
		_, _ = io.WriteString(w, "analysis done")
	})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closedAfterHandler atomic.Bool
	done := make(chan error, 1)
	go func() {
		err := serve(ctx, srv, ln, 5*time.Second)
		// mesmo ponto em que Run loga o resumo e fecha o app
		closedAfterHandler.Store(finished.Load())
		done <- err
	}()

	type result struct {
		body string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/analyze-plant")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		resCh <- result{body: string(b), err: err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	require.NoError(t, <-done)
	assert.True(t, closedAfterHandler.Load(), "serve returned while the handler was still running")

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "analysis done", res.body)
}

func TestServe_ShutdownTimeoutIsReported(t *testing.T) {
	ln := listenLocal(t)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, 20*time.Millisecond) }()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-started
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServe_ListenerFailureIsReturned(t *testing.T) {
	ln := listenLocal(t)
	require.NoError(t, ln.Close())

	err := serve(context.Background(), &http.Server{Handler: http.NotFoundHandler()}, ln, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
