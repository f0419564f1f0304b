package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/utils"
)

func TestEnsureWorkspaceIdempotent(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 2; i++ {
		if err := EnsureWorkspace(root); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	for _, dir := range []string{DownloadsDir, LogsDir} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Fatalf("%s not created", dir)
		}
	}
	if err := EnsureWorkspace(""); !apperr.Is(err, apperr.KindInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestFileTreeFilterAndOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.json", "c.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "01.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	tree, err := FileTree(dir)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	var names []string
	for _, n := range tree {
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "sub,a.txt,b.json" {
		t.Fatalf("unexpected order: %v", names)
	}
	if !tree[0].IsDir || len(tree[0].Children) != 1 || tree[0].Children[0].Path != filepath.Join("sub", "01.txt") {
		t.Fatalf("unexpected sub tree: %+v", tree[0])
	}
}

func TestFileTreeMissingDir(t *testing.T) {
	tree, err := FileTree(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(tree) != 0 {
		t.Fatalf("expected empty tree, got %v %v", tree, err)
	}
}

func TestChapterFormat(t *testing.T) {
	dir := t.TempDir()
	path := ChapterPath(dir, 3)
	if filepath.Base(path) != "03.txt" {
		t.Fatalf("unexpected file name %s", path)
	}
	if ChapterExists(path) {
		t.Fatalf("chapter should not exist yet")
	}
	err := WriteChapter(path, &model.Chapter{Title: "第三章", Url: "https://fanqienovel.com/reader/3", Body: "甲\n\n乙"})
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "标题: 第三章\n链接: https://fanqienovel.com/reader/3\n" + strings.Repeat("=", 50) + "\n\n甲\n\n乙"
	if string(data) != want {
		t.Fatalf("unexpected content:\n%s", data)
	}
	if !ChapterExists(path) {
		t.Fatalf("chapter should exist")
	}
}

func TestMetadataMergeKeepsExtraKeys(t *testing.T) {
	base := t.TempDir()
	novelDir, err := EnsureNovelDir(base, utils.SafeTitle(`A/B\C`))
	if err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if filepath.Base(novelDir) != "A_B_C" {
		t.Fatalf("unexpected dir %s", novelDir)
	}

	meta := &model.NovelMetadata{Title: "A/B\\C", Url: "https://x/book/1", WordCount: model.UnknownWordCount}
	if err := WriteMetadata(novelDir, meta); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := UpdateMetadata(base, "A_B_C", map[string]interface{}{"genre": "玄幻", "description": "新简介"}); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	meta.WordCount = "100万字"
	if err := WriteMetadata(novelDir, meta); err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}

	var obj map[string]interface{}
	data, _ := os.ReadFile(filepath.Join(novelDir, InfoFile))
	if err := utils.Unmarshal(data, &obj); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if obj["genre"] != "玄幻" {
		t.Fatalf("extra key lost: %v", obj)
	}
	if obj["word_count"] != "100万字" || obj["description"] != "" {
		t.Fatalf("scraped fields not refreshed: %v", obj)
	}
	if tags, ok := obj["tags"].([]interface{}); !ok || len(tags) != 0 {
		t.Fatalf("tags should be an empty array: %v", obj["tags"])
	}
	if !strings.Contains(string(data), "\n  \"") {
		t.Fatalf("info.json should be pretty printed:\n%s", data)
	}

	got, err := ReadMetadata(novelDir)
	if err != nil || got.Title != "A/B\\C" {
		t.Fatalf("unexpected metadata %+v %v", got, err)
	}
}

func TestUpdateMetadataMissing(t *testing.T) {
	err := UpdateMetadata(t.TempDir(), "nope", map[string]interface{}{"a": 1})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteNovelAndChapter(t *testing.T) {
	base := t.TempDir()
	novelDir, _ := EnsureNovelDir(base, "书")
	path := ChapterPath(novelDir, 1)
	_ = WriteChapter(path, &model.Chapter{Title: "一"})

	if err := DeleteChapter(base, "书", "01.txt"); err != nil {
		t.Fatalf("failed to delete chapter: %v", err)
	}
	if err := DeleteChapter(base, "书", "01.txt"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := DeleteChapter(base, "书", ""); err == nil {
		t.Fatalf("directory must not be deleted as a chapter")
	}
	if err := DeleteNovel(base, "../.."); !apperr.Is(err, apperr.KindInput) {
		t.Fatalf("expected escape to be rejected, got %v", err)
	}
	if err := DeleteNovel(base, "书"); err != nil {
		t.Fatalf("failed to delete novel: %v", err)
	}
	if _, err := os.Stat(novelDir); !os.IsNotExist(err) {
		t.Fatalf("novel dir still exists")
	}
}

func TestExportChapter(t *testing.T) {
	root := t.TempDir()
	path, err := ExportChapter(root, "测试小说", 2, "# 细纲")
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if path != filepath.Join(root, ResultDir, "测试小说", "2.md") {
		t.Fatalf("unexpected path %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# 细纲" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("正文"), 0644)
	if got, err := ReadFile(dir, "a.txt"); err != nil || got != "正文" {
		t.Fatalf("unexpected read %q %v", got, err)
	}
	if _, err := ReadFile(dir, "../etc/passwd"); !apperr.Is(err, apperr.KindInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestLogLifecycle(t *testing.T) {
	root := t.TempDir()
	if got, _ := ReadLog(root); got != NoLogMessage {
		t.Fatalf("expected placeholder, got %q", got)
	}
	FileLog{Root: root}.Append("开始下载")
	FileLog{Root: root}.Appendf("第 %d 章", 2)
	FileLog{}.Append("dropped")

	got, err := ReadLog(root)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "[") || !strings.HasSuffix(lines[0], "] 开始下载") {
		t.Fatalf("unexpected log:\n%s", got)
	}
	if err := ClearLog(root); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if got, _ := ReadLog(root); got != "" {
		t.Fatalf("expected empty log, got %q", got)
	}
}
