package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// csvWriter re-encodes zerolog JSON lines as time,level,message rows. Other
// fields are dropped, except the error which is folded into the message.
type csvWriter struct {
	mu  sync.Mutex
	out io.Writer
	buf bytes.Buffer
	w   *csv.Writer
}

func newCSVWriter(out io.Writer) *csvWriter {
	c := &csvWriter{out: out}
	c.w = csv.NewWriter(&c.buf)
	return c
}

func (c *csvWriter) Write(p []byte) (int, error) {
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Reset()
	_ = c.w.Write([]string{
		stringField(entry, zerolog.TimestampFieldName),
		levelName(stringField(entry, zerolog.LevelFieldName)),
		csvMessage(entry),
	})
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return 0, err
	}
	if _, err := c.out.Write(c.buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// csvMessage appends the error field to the message so the cause of a
// failure survives the three-column layout.
func csvMessage(entry map[string]any) string {
	msg := stringField(entry, zerolog.MessageFieldName)
	errText := stringField(entry, zerolog.ErrorFieldName)
	switch {
	case errText == "":
		return msg
	case msg == "":
		return errText
	default:
		return msg + ": " + errText
	}
}

func stringField(entry map[string]any, key string) string {
	if v, ok := entry[key].(string); ok {
		return v
	}
	return ""
}

func levelName(level string) string {
	switch level {
	case "warn":
		return "WARNING"
	case "fatal":
		return "CRITICAL"
	default:
		return strings.ToUpper(level)
	}
}
