package ondd

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
)

// Frames on the ONDD socket are XML documents terminated by a NUL byte.

func writeFrame(w io.Writer, doc any) error {
	payload, err := xml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	payload = append(payload, 0)
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func readFrame(r *bufio.Reader, doc any) error {
	payload, err := r.ReadBytes(0)
	if err != nil {
		return err
	}
	payload = payload[:len(payload)-1]
	if err := xml.Unmarshal(payload, doc); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

type request struct {
	XMLName xml.Name `xml:"request"`
	Type    string   `xml:"type,attr"`
	Stream  string   `xml:"stream,omitempty"`
}

type response struct {
	XMLName xml.Name `xml:"response"`
	Code    int      `xml:"code,attr"`
	Message string   `xml:"message,omitempty"`
}

type notificationFrame struct {
	XMLName xml.Name    `xml:"notification"`
	Type    string      `xml:"type,attr"`
	Events  []eventNode `xml:"events>event"`
}

type eventNode struct {
	Type string `xml:"type,attr"`
	Path string `xml:"path"`
	Size int64  `xml:"size"`
}
