package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/termgate/termgate/internal/config"
)

var (
	logger *logrus.Logger
	mu     sync.Mutex
)

// Init sets up structured logging to stdout and a rotated log file.
// Must be called after config.Load().
func Init() {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	writers := []io.Writer{os.Stdout}
	if path := config.Cfg.LogPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			l.Warnf("cannot create log directory: %v", err)
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    config.Cfg.LogMaxSizeMB,
				MaxBackups: config.Cfg.LogMaxBackups,
				MaxAge:     config.Cfg.LogMaxAgeDays,
				Compress:   config.Cfg.LogCompress,
			})
		}
	}
	l.SetOutput(io.MultiWriter(writers...))

	logger = l
}

// L returns the process logger. Safe to call before Init; falls back to a
// plain stdout logger so library code never has to nil-check.
func L() *logrus.Logger {
	if logger == nil {
		logger = logrus.New()
	}
	return logger
}

// ReadTail returns the last n lines from the active log file.
func ReadTail(n int) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	path := config.Cfg.LogPath
	if path == "" {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	// Lines carrying sanitized command fields can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan log file: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

// Clear truncates the active log file. Rotated backups are left alone.
func Clear() error {
	mu.Lock()
	defer mu.Unlock()

	path := config.Cfg.LogPath
	if path == "" {
		return nil
	}
	err := os.Truncate(path, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
