// Package ondd subscribes to the peer download daemon's Unix socket and
// surfaces completed downloads. The wire format is NUL-terminated XML
// frames; the peer may come and go, so the listener reconnects with
// backoff.
package ondd
