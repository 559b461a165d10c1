package ondd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"fsal/internal/config"
	"fsal/internal/logging"
)

const (
	downloadStream = "downloads"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Notification describes a completed download reported by the peer daemon.
// Path is relative to the download root the peer writes into.
type Notification struct {
	Path string
	Size int64
}

// Handler consumes download notifications. Errors are logged, not fatal to
// the listener.
type Handler func(ctx context.Context, n Notification) error

// Listener maintains a subscription to the peer download daemon's
// notification stream. The peer socket may appear and disappear at any
// time; the listener reconnects with exponential backoff.
type Listener struct {
	socketPath string
	handler    Handler
	log        *slog.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewListener builds a listener for the configured ONDD socket.
func NewListener(cfg *config.Config, handler Handler, logger *slog.Logger) *Listener {
	return &Listener{
		socketPath:     cfg.ONDD.Socket,
		handler:        handler,
		log:            logging.NewComponentLogger(logger, "ondd"),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Run blocks until ctx is cancelled, keeping the subscription alive across
// peer restarts. The reconnect backoff resets once a subscription succeeds
// so a healthy stream never inherits the delay of earlier failures.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.initialBackoff
	for {
		subscribed, err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			backoff = l.initialBackoff
		}
		if err != nil {
			l.log.Debug("notification stream closed",
				logging.String("socket", l.socketPath),
				logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

func (l *Listener) listenOnce(ctx context.Context) (bool, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", l.socketPath)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Unblock the read loop when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	if err := subscribe(conn, reader); err != nil {
		return false, err
	}
	l.log.Info("subscribed to download notifications",
		logging.String("socket", l.socketPath))

	for {
		var frame notificationFrame
		if err := readFrame(reader, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			return true, err
		}
		l.dispatch(ctx, frame)
	}
}

func (l *Listener) dispatch(ctx context.Context, frame notificationFrame) {
	if frame.Type != "download" {
		return
	}
	for _, ev := range frame.Events {
		if ev.Type != "file_complete" || ev.Path == "" {
			continue
		}
		n := Notification{Path: ev.Path, Size: ev.Size}
		l.log.Debug("download complete",
			logging.String(logging.FieldPath, n.Path),
			logging.Int64("size", n.Size))
		if err := l.handler(ctx, n); err != nil {
			l.log.Warn("notification handler failed",
				logging.String(logging.FieldPath, n.Path),
				logging.Error(err))
		}
	}
}

func subscribe(conn net.Conn, reader *bufio.Reader) error {
	req := request{Type: "subscribe", Stream: downloadStream}
	if err := writeFrame(conn, req); err != nil {
		return err
	}
	var resp response
	if err := readFrame(reader, &resp); err != nil {
		return fmt.Errorf("subscribe response: %w", err)
	}
	if resp.Code != 200 {
		return fmt.Errorf("subscribe rejected: %d %s", resp.Code, resp.Message)
	}
	return nil
}
