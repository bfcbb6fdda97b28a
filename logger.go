// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"fmt"

	syslog "github.com/RackSec/srslog"
	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// SyslogTag is the default tag for operational log lines sent to syslog.
const SyslogTag = "PassiveDNS.kafka"

// noticeKey marks a log line that is sent to syslog at LOG_NOTICE rather
// than LOG_INFO.
const noticeKey = "notice"

// nopLogger, the default logger, drops everything.
type nopLogger struct{}

func (*nopLogger) Level() kgo.LogLevel { return kgo.LogLevelNone }
func (*nopLogger) Log(kgo.LogLevel, string, ...any) {
}

// logrusLogger adapts a logrus logger to the kgo.Logger interface so the
// same sink receives both feed and franz-go client messages.
type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrusLogger returns a kgo.Logger that writes through l.
func NewLogrusLogger(l *logrus.Logger) kgo.Logger {
	return &logrusLogger{l: l}
}

func (ll *logrusLogger) Level() kgo.LogLevel {
	switch ll.l.GetLevel() {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return kgo.LogLevelError
	case logrus.WarnLevel:
		return kgo.LogLevelWarn
	case logrus.InfoLevel:
		return kgo.LogLevelInfo
	default:
		return kgo.LogLevelDebug
	}
}

func (ll *logrusLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	entry := ll.l.WithFields(keyvalFields(keyvals))
	switch level {
	case kgo.LogLevelError:
		entry.Error(msg)
	case kgo.LogLevelWarn:
		entry.Warn(msg)
	case kgo.LogLevelInfo:
		entry.Info(msg)
	case kgo.LogLevelDebug:
		entry.Debug(msg)
	}
}

// keyvalFields converts franz-go style alternating key/value pairs into
// logrus fields. A trailing key without a value is kept with a nil value.
func keyvalFields(keyvals []any) logrus.Fields {
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = nil
		}
	}
	return fields
}

// syslogWriter is the subset of *srslog.Writer the hook needs.
type syslogWriter interface {
	Err(string) error
	Warning(string) error
	Notice(string) error
	Info(string) error
	Debug(string) error
	Close() error
}

// SyslogHook is a logrus hook that forwards entries to the operational
// syslog sink.
type SyslogHook struct {
	writer syslogWriter
}

var _ logrus.Hook = &SyslogHook{}

// NewSyslogHook dials the syslog daemon. An empty network and address
// selects the local syslog socket. Entries are logged with the LOCAL1
// facility.
func NewSyslogHook(network, address, tag string) (*SyslogHook, error) {
	if tag == "" {
		tag = SyslogTag
	}
	w, err := syslog.Dial(network, address, syslog.LOG_LOCAL1|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogHook{writer: w}, nil
}

func (h *SyslogHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

func (h *SyslogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.InfoLevel:
		if _, ok := entry.Data[noticeKey]; ok {
			return h.writer.Notice(line)
		}
		return h.writer.Info(line)
	default:
		return h.writer.Debug(line)
	}
}

// Close closes the syslog connection.
func (h *SyslogHook) Close() error {
	return h.writer.Close()
}
