package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Hooolee/novel-splitter/apperr"
)

// NoLogMessage is returned by ReadLog when nothing was logged yet.
const NoLogMessage = "暂无日志"

func LogPath(root string) string {
	return filepath.Join(root, LogsDir, LogFile)
}

// FileLog appends timestamped lines to <Root>/logs/app.log. A zero FileLog
// discards everything.
type FileLog struct {
	Root string
}

func (l FileLog) Append(msg string) {
	if l.Root == "" {
		return
	}
	_ = AppendLog(l.Root, msg)
}

func (l FileLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

func AppendLog(root, msg string) error {
	path := LogPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.Filesystem("failed to create log directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return apperr.Filesystem("failed to open log file", err)
	}
	defer f.Close()
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), msg)
	if _, err := f.WriteString(line); err != nil {
		return apperr.Filesystem("failed to append log", err)
	}
	return nil
}

func ReadLog(root string) (string, error) {
	data, err := os.ReadFile(LogPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return NoLogMessage, nil
		}
		return "", apperr.Filesystem("failed to read log", err)
	}
	return string(data), nil
}

func ClearLog(root string) error {
	path := LogPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.Filesystem("failed to create log directory", err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return apperr.Filesystem("failed to clear log", err)
	}
	return nil
}
