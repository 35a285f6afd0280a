package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface handed to every component. Every method takes a message
// followed by alternating key/value pairs.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	// CDebugw logs at debug level, or unconditionally if ctx was passed through EnableDebugMode.
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}

// impl fans each entry out to its appenders. Subloggers share the parent's appender list as it
// was when they were created.
type impl struct {
	name  string
	level AtomicLevel
	utc   bool

	mu        sync.Mutex
	appenders []Appender
}

var _ Logger = &impl{}

func newImpl(name string, level Level, utc bool) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), utc: utc}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) snapshot() []Appender {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.appenders[:len(imp.appenders):len(imp.appenders)]
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	sub := newImpl(name, imp.level.Get(), imp.utc)
	sub.appenders = imp.snapshot()
	return sub
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.snapshot() {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return GlobalLogLevel.Enabled(zapcore.DebugLevel) || level >= imp.level.Get()
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, false, msg, keysAndValues)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, IsDebugMode(ctx), msg, keysAndValues)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.emit(INFO, false, msg, keysAndValues)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.emit(WARN, false, msg, keysAndValues)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, false, msg, keysAndValues)
}

// emit must be called directly from the exported method so callerDepth lands on its caller.
func (imp *impl) emit(level Level, force bool, msg string, keysAndValues []interface{}) {
	if !force && !imp.enabled(level) {
		return
	}
	entry, fields := imp.entry(level, msg), pairFields(keysAndValues)
	for _, appender := range imp.snapshot() {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	now := time.Now()
	if imp.utc {
		now = now.UTC()
	}
	return zapcore.Entry{
		Level:      level.AsZap(),
		Time:       now,
		LoggerName: imp.name,
		Message:    msg,
		Caller:     caller(),
	}
}

var errUnpairedKey = errors.New("unpaired log key")

// pairFields turns alternating keys and values into zap fields. A trailing key with no value is
// kept, carrying errUnpairedKey.
func pairFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// callerDepth skips caller, entry, emit and the exported method.
const callerDepth = 4

func caller() zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(callerDepth)
	if !ok {
		return zapcore.EntryCaller{}
	}
	c := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Function = fn.Name()
	}
	return c
}
