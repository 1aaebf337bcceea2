// Package logger owns the process-wide arbor logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"noi_analyzer/pkg/core/config"
)

var (
	global arbor.ILogger
	mu     sync.RWMutex
)

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		TextOutput: true,
	}
}

// Get returns the global logger, creating a console logger on first use.
func Get() arbor.ILogger {
	mu.RLock()
	if global != nil {
		defer mu.RUnlock()
		return global
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return global
}

// Or returns l when non-nil and the global logger otherwise.
func Or(l arbor.ILogger) arbor.ILogger {
	if l != nil {
		return l
	}
	return Get()
}

// Init builds the global logger from cfg and returns it.
func Init(cfg config.LoggingConfig) arbor.ILogger {
	mu.Lock()
	defer mu.Unlock()

	l := arbor.NewLogger()
	console, file := false, false
	for _, out := range cfg.Output {
		switch out {
		case "console", "stdout":
			console = true
		case "file":
			file = true
		}
	}

	if file && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fmt.Printf("[LOGGER] Warning: cannot create log directory: %v\n", err)
			console = true
		} else {
			l = l.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   cfg.File,
				TimeFormat: "15:04:05",
				MaxSize:    50 * 1024 * 1024,
				MaxBackups: 3,
				TextOutput: true,
			})
		}
	}
	if console || !file {
		l = l.WithConsoleWriter(consoleWriter())
	}
	if cfg.Level != "" {
		l = l.WithLevelFromString(cfg.Level)
	}

	global = l
	return l
}
