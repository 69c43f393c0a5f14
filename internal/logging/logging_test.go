// internal/logging/logging_test.go
package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_FieldsSortedByKey(t *testing.T) {
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "scan complete",
		Data: logrus.Fields{
			"unit":  3,
			"host":  "192.168.1.10",
			"block": 103,
		},
	}

	f := &Formatter{}
	for i := 0; i < 20; i++ {
		out, err := f.Format(entry)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(out),
			"scan complete block=103 host=192.168.1.10 unit=3\n"))
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("chatty")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	l = New("debug")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}
