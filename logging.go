package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	logger       = newAsyncLogger()
	debugLogging bool
)

type logLevel int

const (
	logLevelDebug logLevel = iota
	logLevelInfo
	logLevelWarn
	logLevelError
)

const logRetentionDays = 7

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func parseLogLevel(name string) (logLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return logLevelDebug, nil
	case "info", "":
		return logLevelInfo, nil
	case "warn", "warning":
		return logLevelWarn, nil
	case "error":
		return logLevelError, nil
	}
	return logLevelInfo, fmt.Errorf("unknown log level %q", name)
}

type logEvent struct {
	level logLevel
	msg   string
	attrs []any
}

// asyncLogger serializes log writes through a background goroutine so poll
// ticks and the status server never block on filesystem I/O.
type asyncLogger struct {
	level     atomic.Int32
	queue     chan logEvent
	done      chan struct{}
	writerMu  sync.RWMutex
	appWriter io.Writer
	errWriter io.Writer
	stdout    bool
	wg        sync.WaitGroup
	stopOnce  sync.Once
	closing   atomic.Bool
}

func newAsyncLogger() *asyncLogger {
	l := &asyncLogger{
		queue:     make(chan logEvent, 2048),
		done:      make(chan struct{}),
		appWriter: os.Stdout,
		errWriter: io.Discard,
	}
	l.level.Store(int32(logLevelInfo))
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *asyncLogger) run() {
	defer l.wg.Done()
	for {
		select {
		case evt := <-l.queue:
			l.writeEntry(evt)
		case <-l.done:
			// Drain whatever is queued before exiting.
			for {
				select {
				case evt := <-l.queue:
					l.writeEntry(evt)
				default:
					return
				}
			}
		}
	}
}

func (l *asyncLogger) log(level logLevel, msg string, attrs ...any) {
	if level < logLevel(l.level.Load()) {
		return
	}
	if l.closing.Load() {
		return
	}
	select {
	case l.queue <- logEvent{level: level, msg: msg, attrs: append([]any(nil), attrs...)}:
	case <-l.done:
	}
}

func (l *asyncLogger) Debug(msg string, attrs ...any) { l.log(logLevelDebug, msg, attrs...) }
func (l *asyncLogger) Info(msg string, attrs ...any)  { l.log(logLevelInfo, msg, attrs...) }
func (l *asyncLogger) Warn(msg string, attrs ...any)  { l.log(logLevelWarn, msg, attrs...) }
func (l *asyncLogger) Error(msg string, attrs ...any) { l.log(logLevelError, msg, attrs...) }

func (l *asyncLogger) setLevel(level logLevel) {
	l.level.Store(int32(level))
}

func (l *asyncLogger) configureWriters(app, errWriter io.Writer, stdout bool) {
	if app == nil {
		app = io.Discard
	}
	if errWriter == nil {
		errWriter = io.Discard
	}
	l.writerMu.Lock()
	l.appWriter = app
	l.errWriter = errWriter
	l.stdout = stdout
	l.writerMu.Unlock()
}

func (l *asyncLogger) Stop() {
	l.stopOnce.Do(func() {
		l.closing.Store(true)
		close(l.done)
		l.wg.Wait()
		l.writerMu.Lock()
		closeWriter(l.appWriter)
		closeWriter(l.errWriter)
		l.appWriter = io.Discard
		l.errWriter = io.Discard
		l.writerMu.Unlock()
	})
}

func closeWriter(w io.Writer) {
	if closer, ok := w.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (l *asyncLogger) writeEntry(evt logEvent) {
	levelName := "UNKNOWN"
	if int(evt.level) >= 0 && int(evt.level) < len(levelNames) {
		levelName = levelNames[evt.level]
	}
	var entry strings.Builder
	entry.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	entry.WriteString(" [")
	entry.WriteString(levelName)
	entry.WriteString("] ")
	entry.WriteString(evt.msg)
	if attrs := formatAttrs(evt.attrs); attrs != "" {
		entry.WriteByte(' ')
		entry.WriteString(attrs)
	}
	entry.WriteByte('\n')
	line := []byte(entry.String())

	l.writerMu.RLock()
	app := l.appWriter
	errWriter := l.errWriter
	stdout := l.stdout
	l.writerMu.RUnlock()

	if stdout {
		_, _ = os.Stdout.Write(line)
	}
	if app != nil {
		_, _ = app.Write(line)
	}
	if evt.level >= logLevelError && errWriter != nil {
		_, _ = errWriter.Write(line)
	}
}

func formatAttrs(attrs []any) string {
	if len(attrs) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(attrs); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		key := fmt.Sprint(attrs[i])
		if i+1 < len(attrs) {
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(fmt.Sprint(attrs[i+1]))
			i++
		} else {
			b.WriteString(key)
		}
	}
	return b.String()
}

// dailyRollingFileWriter writes to <dir>/<name>-YYYY-MM-DD<ext> and removes
// files older than logRetentionDays.
type dailyRollingFileWriter struct {
	dir         string
	name        string
	ext         string
	mu          sync.Mutex
	f           *os.File
	currentDate string
}

func newDailyRollingFileWriter(path string) io.Writer {
	if path == "" {
		return io.Discard
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return &dailyRollingFileWriter{
		dir:  filepath.Dir(path),
		name: strings.TrimSuffix(base, ext),
		ext:  ext,
	}
}

func (w *dailyRollingFileWriter) ensureFile(now time.Time) error {
	if w.name == "" || w.dir == "" {
		return fmt.Errorf("invalid log path")
	}
	date := now.UTC().Format("2006-01-02")
	if w.f != nil && w.currentDate == date {
		return nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", w.name, date, w.ext))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.currentDate = date
	w.cleanupOldLogs(now)
	return nil
}

func (w *dailyRollingFileWriter) cleanupOldLogs(now time.Time) {
	if logRetentionDays <= 0 {
		return
	}
	cutoff := now.UTC().AddDate(0, 0, -(logRetentionDays - 1))
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	prefix := w.name + "-"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, w.ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), w.ext)
		ts, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}

func (w *dailyRollingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureFile(time.Now()); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}

func (w *dailyRollingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func setLogLevel(level logLevel) {
	logger.setLevel(level)
}

func configureFileLogging(appPath, errorPath string, stdout bool) {
	logger.configureWriters(
		newDailyRollingFileWriter(appPath),
		newDailyRollingFileWriter(errorPath),
		stdout,
	)
}

func fatal(msg string, err error, attrs ...any) {
	attrPairs := append(attrs, "error", err)
	logger.Error(msg, attrPairs...)
	logger.Stop()
	os.Exit(1)
}
