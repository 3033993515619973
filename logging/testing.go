package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes entries through tb.Log so output is attributed to the running test.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender logging to tb in local time.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	cols := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		cols = append(cols, callerToString(&entry.Caller))
	}
	cols = append(cols, entry.Message)

	var err error
	if len(fields) > 0 {
		// fields keep their order when encoded against an empty entry
		enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, encErr := enc.EncodeEntry(zapcore.Entry{}, fields)
		if encErr == nil {
			cols = append(cols, buf.String())
			buf.Free()
		}
		err = encErr
	}
	tapp.tb.Log(strings.Join(cols, "\t"))
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}
