// Package stream multiplexes plain progress text and structured JSON events
// onto one newline-delimited outbound byte stream.
package stream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rotisserie/eris"
)

// Event types carried on the stream.
const (
	EventPhase = "phase"
	EventCSV   = "csv"
)

// PhaseEvent marks the start of a pipeline phase.
type PhaseEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CSVEvent carries one region's finished CSV document.
type CSVEvent struct {
	Type       string `json:"type"`
	Zip        string `json:"zip"`
	Filename   string `json:"filename"`
	DataBase64 string `json:"dataBase64"`
}

// Sink receives pipeline progress. Implementations must be safe for use from
// a single producer goroutine; LineWriter additionally locks so either side
// of an HTTP handler can share one.
type Sink interface {
	Linef(format string, args ...any)
	Phase(message string)
	CSV(zip, filename string, data []byte)
}

// LineWriter writes the mixed line stream to an io.Writer, flushing after
// every line when the writer supports it.
type LineWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewLineWriter wraps w. If w implements http.Flusher (a chunked HTTP
// response does), every line is flushed to the client immediately.
func NewLineWriter(w io.Writer) *LineWriter {
	lw := &LineWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		lw.flusher = f
	}
	return lw
}

// Linef writes one plain progress line.
func (lw *LineWriter) Linef(format string, args ...any) {
	lw.writeLine(fmt.Sprintf(format, args...))
}

// Phase writes a structured phase marker.
func (lw *LineWriter) Phase(message string) {
	lw.writeJSON(PhaseEvent{Type: EventPhase, Message: message})
}

// CSV writes a structured csv event with base64-encoded content.
func (lw *LineWriter) CSV(zip, filename string, data []byte) {
	lw.writeJSON(CSVEvent{
		Type:       EventCSV,
		Zip:        zip,
		Filename:   filename,
		DataBase64: base64.StdEncoding.EncodeToString(data),
	})
}

func (lw *LineWriter) writeJSON(v any) {
	// Marshaling these fixed shapes cannot fail; fall back to a plain line
	// if it somehow does so the stream never silently drops an event.
	data, err := json.Marshal(v)
	if err != nil {
		lw.writeLine(fmt.Sprintf("event encode error: %v", err))
		return
	}
	lw.writeLine(string(data))
}

func (lw *LineWriter) writeLine(line string) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	// A write error means the caller abandoned the connection; the pipeline
	// keeps running and subsequent writes keep failing harmlessly.
	_, _ = io.WriteString(lw.w, line+"\n")
	if lw.flusher != nil {
		lw.flusher.Flush()
	}
}

// Line is one decoded inbound stream line: exactly one of Phase, CSV, or
// Text is set.
type Line struct {
	Phase *PhaseEvent
	CSV   *CSVEvent
	Text  string
}

// ParseLine decodes one stream line the way consumers are expected to:
// JSON with a recognized type discriminator is structured, everything else
// (including malformed JSON) is plain display text.
func ParseLine(raw string) Line {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err == nil {
		switch probe.Type {
		case EventPhase:
			var ev PhaseEvent
			if json.Unmarshal([]byte(raw), &ev) == nil {
				return Line{Phase: &ev}
			}
		case EventCSV:
			var ev CSVEvent
			if json.Unmarshal([]byte(raw), &ev) == nil {
				return Line{CSV: &ev}
			}
		}
	}
	return Line{Text: raw}
}

// DecodeCSV returns the event's raw CSV bytes.
func (e *CSVEvent) DecodeCSV() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.DataBase64)
	if err != nil {
		return nil, eris.Wrap(err, "stream: decode csv payload")
	}
	return data, nil
}
