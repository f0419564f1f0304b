package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/model"
)

// EnsureNovelDir creates <base>/<safeTitle>.
func EnsureNovelDir(base, safeTitle string) (string, error) {
	novelDir, err := within(base, safeTitle)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(novelDir, 0755); err != nil {
		return "", apperr.Filesystem("failed to create novel directory", err)
	}
	return novelDir, nil
}

// ChapterFileName is the 1-based, zero-padded file name of a batch entry.
func ChapterFileName(ordinal int) string {
	return fmt.Sprintf("%02d.txt", ordinal)
}

func ChapterPath(novelDir string, ordinal int) string {
	return filepath.Join(novelDir, ChapterFileName(ordinal))
}

// ChapterExists is the resume check: an existing file means downloaded.
func ChapterExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func FormatChapter(chapter *model.Chapter) string {
	var b strings.Builder
	b.WriteString("标题: ")
	b.WriteString(chapter.Title)
	b.WriteString("\n链接: ")
	b.WriteString(chapter.Url)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")
	b.WriteString(chapter.Body)
	return b.String()
}

func WriteChapter(path string, chapter *model.Chapter) error {
	if err := os.WriteFile(path, []byte(FormatChapter(chapter)), 0644); err != nil {
		return apperr.Filesystem("failed to write chapter file", err)
	}
	return nil
}
