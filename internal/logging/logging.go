// internal/logging/logging.go
package logging

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Formatter renders "timestamp | LEVEL | message" lines.
type Formatter struct{}

// Format renders a single log entry.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02T15:04:05.000-07:00")
	level := strings.ToUpper(entry.Level.String())

	b.WriteString(fmt.Sprintf("%s | %-5s | %s", timestamp, level, entry.Message))

	// Fields render in key order so lines are stable across runs.
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Data[k]))
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}

// New creates a logger writing to stderr at the given level.
// Unknown level strings fall back to info.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&Formatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l
}
