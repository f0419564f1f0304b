// Package storage owns the on-disk layout of a workspace:
//
//	<root>/downloads/<novel>/info.json
//	<root>/downloads/<novel>/01.txt ...
//	<root>/logs/app.log
//	<root>/result/<novel>/<index>.md
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hooolee/novel-splitter/apperr"
)

const (
	DownloadsDir = "downloads"
	LogsDir      = "logs"
	ResultDir    = "result"
	InfoFile     = "info.json"
	LogFile      = "app.log"
)

// EnsureWorkspace creates downloads/ and logs/ under root. It is idempotent.
func EnsureWorkspace(root string) error {
	if root == "" {
		return apperr.Input("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, DownloadsDir), 0755); err != nil {
		return apperr.Filesystem("创建 downloads 目录失败", err)
	}
	if err := os.MkdirAll(filepath.Join(root, LogsDir), 0755); err != nil {
		return apperr.Filesystem("创建 logs 目录失败", err)
	}
	return nil
}

// within joins rel onto base and refuses results outside base.
func within(base string, rel ...string) (string, error) {
	target := filepath.Join(append([]string{base}, rel...)...)
	r, err := filepath.Rel(filepath.Clean(base), target)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", apperr.Input("invalid path: %s", filepath.Join(rel...))
	}
	return target, nil
}

// ReadFile returns the text of a file addressed relative to dir, as listed by
// FileTree.
func ReadFile(dir, rel string) (string, error) {
	path, err := within(dir, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NotFound("文件不存在: %s", rel)
		}
		return "", apperr.Filesystem("读取文件失败", err)
	}
	return string(data), nil
}

func DeleteNovel(dir, novel string) error {
	path, err := within(dir, novel)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return apperr.NotFound("小说目录不存在")
	}
	if !info.IsDir() {
		return apperr.Input("路径不是目录")
	}
	if err := os.RemoveAll(path); err != nil {
		return apperr.Filesystem("删除失败", err)
	}
	return nil
}

func DeleteChapter(dir, novel, chapterFile string) error {
	path, err := within(dir, novel, chapterFile)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return apperr.NotFound("章节文件不存在")
	}
	if !info.Mode().IsRegular() {
		return apperr.Input("路径不是文件")
	}
	if err := os.Remove(path); err != nil {
		return apperr.Filesystem("删除失败", err)
	}
	return nil
}

// ExportChapter writes content to <root>/result/<novel>/<index>.md and
// returns the written path.
func ExportChapter(root, novelTitle string, index int, content string) (string, error) {
	resultDir, err := within(filepath.Join(root, ResultDir), novelTitle)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resultDir, 0755); err != nil {
		return "", apperr.Filesystem("创建目录失败", err)
	}
	path := filepath.Join(resultDir, fmt.Sprintf("%d.md", index))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", apperr.Filesystem("写入文件失败", err)
	}
	return path, nil
}
