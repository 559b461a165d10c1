package ondd

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"fsal/internal/config"
	"fsal/internal/logging"
)

func fakePeer(t *testing.T, socketPath string, frames ...any) {
	t.Helper()

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		var req request
		if err := readFrame(reader, &req); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if req.Type != "subscribe" || req.Stream != downloadStream {
			t.Errorf("unexpected subscribe frame: %+v", req)
			return
		}
		if err := writeFrame(conn, response{Code: 200}); err != nil {
			t.Errorf("write response: %v", err)
			return
		}
		for _, frame := range frames {
			if err := writeFrame(conn, frame); err != nil {
				t.Errorf("write frame: %v", err)
				return
			}
		}
		// Hold the connection open until the listener goes away.
		_, _ = reader.ReadBytes(0)
	}()
}

func TestListenerDeliversDownloadNotifications(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ondd.sock")
	fakePeer(t, socketPath, notificationFrame{
		Type: "download",
		Events: []eventNode{
			{Type: "file_complete", Path: "downloads/a.zip", Size: 42},
			{Type: "file_begin", Path: "downloads/b.zip"},
		},
	})

	received := make(chan Notification, 2)
	cfg := &config.Config{ONDD: config.ONDD{Enabled: true, Socket: socketPath}}
	listener := NewListener(cfg, func(_ context.Context, n Notification) error {
		received <- n
		return nil
	}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = listener.Run(ctx)
		close(done)
	}()

	select {
	case n := <-received:
		if n.Path != "downloads/a.zip" || n.Size != 42 {
			t.Fatalf("unexpected notification: %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	// Only completion events reach the handler.
	select {
	case n := <-received:
		t.Fatalf("unexpected second notification: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestListenerResetsBackoffAfterSubscription(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ondd.sock")

	received := make(chan Notification, 2)
	cfg := &config.Config{ONDD: config.ONDD{Enabled: true, Socket: socketPath}}
	listener := NewListener(cfg, func(_ context.Context, n Notification) error {
		received <- n
		return nil
	}, logging.NewNop())
	listener.initialBackoff = 10 * time.Millisecond
	listener.maxBackoff = 2 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = listener.Run(ctx)
		close(done)
	}()

	// Let the retry delay climb to its cap while the peer is away.
	time.Sleep(500 * time.Millisecond)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	paths := []string{"downloads/first.zip", "downloads/second.zip"}
	go func() {
		for _, path := range paths {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			reader := bufio.NewReader(conn)
			var req request
			if err := readFrame(reader, &req); err != nil {
				conn.Close()
				return
			}
			if err := writeFrame(conn, response{Code: 200}); err != nil {
				conn.Close()
				return
			}
			_ = writeFrame(conn, notificationFrame{
				Type:   "download",
				Events: []eventNode{{Type: "file_complete", Path: path, Size: 1}},
			})
			// Drop the first session so the listener has to reconnect.
			conn.Close()
		}
	}()

	select {
	case n := <-received:
		if n.Path != "downloads/first.zip" {
			t.Fatalf("unexpected notification: %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first notification")
	}

	// After a successful session the next reconnect uses the initial delay,
	// not the capped one the earlier failures grew.
	select {
	case n := <-received:
		if n.Path != "downloads/second.zip" {
			t.Fatalf("unexpected notification: %+v", n)
		}
	case <-time.After(600 * time.Millisecond):
		t.Fatal("reconnect after a healthy session was not prompt")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestListenerRetriesWhenPeerAbsent(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ondd.sock")
	cfg := &config.Config{ONDD: config.ONDD{Enabled: true, Socket: socketPath}}
	listener := NewListener(cfg, func(context.Context, Notification) error {
		return nil
	}, logging.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := listener.Run(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
}
