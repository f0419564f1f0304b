package server

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hooolee/novel-splitter/ai"
	"github.com/Hooolee/novel-splitter/config"
	"github.com/Hooolee/novel-splitter/downloader"
	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
	"github.com/Hooolee/novel-splitter/utils"
)

type stubDownloader struct {
	platform model.Platform
}

func (s stubDownloader) Platform() model.Platform { return s.platform }

func (s stubDownloader) FetchRankList(ctx context.Context, rankUrl string) ([]string, error) {
	return []string{"https://example.com/book/1"}, nil
}

func (s stubDownloader) FetchNovelMetadata(ctx context.Context, novelUrl string) (*model.NovelMetadata, error) {
	return &model.NovelMetadata{Title: "测试小说", Url: novelUrl, WordCount: model.UnknownWordCount}, nil
}

func (s stubDownloader) FetchChapterList(ctx context.Context, novelUrl string) ([]model.ChapterRef, error) {
	return []model.ChapterRef{{Title: "第一章", Href: "/c/1"}, {Title: "第二章", Href: "/c/2"}}, nil
}

func (s stubDownloader) DownloadChapter(ctx context.Context, chapterUrl string) (string, string, error) {
	return "", "正文", nil
}

func (s stubDownloader) SelectBatch(chapters []model.ChapterRef, count int) []model.ChapterRef {
	return chapters[:min(count, len(chapters))]
}

func (s stubDownloader) ChapterUrl(href string) string { return "https://example.com" + href }

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Workspace.Root = root
	cfg.Download.ChapterDelay = time.Millisecond
	cfg.Download.RetryDelay = time.Millisecond
	s := New(Deps{
		Config: cfg,
		NewDownloader: func(platform model.Platform, opts downloader.Options) (model.Downloader, error) {
			return stubDownloader{platform: platform}, nil
		},
	})
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var resp Response
	if err := utils.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

func waitFor(t *testing.T, ch chan events.Message, status string) model.ProgressEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-ch:
			if p, ok := msg.Payload.(model.ProgressEvent); ok && p.Status == status {
				return p
			}
		case <-timeout:
			t.Fatalf("no %s event", status)
		}
	}
}

func TestStartDownloadRunsInQueue(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)
	ch := s.Hub().Subscribe()
	defer s.Hub().Unsubscribe(ch)

	base := filepath.Join(root, storage.DownloadsDir)
	code, resp := do(t, s.Router(), http.MethodPost, "/api/start_download",
		`{"url":"https://example.com/book/1","count":2,"dir_name":"`+base+`","platform":"fanqie"}`)
	if code != http.StatusOK || resp.Message != "success" {
		t.Fatalf("unexpected response %d %+v", code, resp)
	}
	data := resp.Data.(map[string]interface{})
	if data["task_id"] == "" || data["message"] != "Task started" {
		t.Fatalf("unexpected data %+v", data)
	}

	done := waitFor(t, ch, model.StatusCompleted)
	if done.Message != "《测试小说》下载完成!" {
		t.Fatalf("unexpected completion %q", done.Message)
	}
	for _, name := range []string{"01.txt", "02.txt", storage.InfoFile} {
		if _, err := os.Stat(filepath.Join(base, "测试小说", name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}

	log, _ := storage.ReadLog(root)
	if !strings.Contains(log, "《测试小说》下载完成!") {
		t.Fatalf("completion not logged:\n%s", log)
	}
}

func TestStartDownloadValidation(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	r := s.Router()

	code, resp := do(t, r, http.MethodPost, "/api/start_download", `{"url":"","dir_name":"x","platform":"fanqie"}`)
	if code != http.StatusBadRequest || resp.Message != "请输入小说链接" {
		t.Fatalf("unexpected response %d %+v", code, resp)
	}
	code, resp = do(t, r, http.MethodPost, "/api/start_download", `{"url":"u","dir_name":"x","platform":"jjwxc"}`)
	if code != http.StatusBadRequest || !strings.Contains(resp.Message, "不支持的平台") {
		t.Fatalf("unexpected response %d %+v", code, resp)
	}
	code, _ = do(t, r, http.MethodPost, "/api/start_download", `not json`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", code)
	}
}

func TestScanAndDownloadRank(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)
	ch := s.Hub().Subscribe()
	defer s.Hub().Unsubscribe(ch)

	code, _ := do(t, s.Router(), http.MethodPost, "/api/scan_and_download_rank",
		`{"rank_url":"https://example.com/rank","max_novels":5,"count_per_novel":1,"dir_name":"`+root+`","platform":"qidian"}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	first := waitFor(t, ch, model.StatusCompleted)
	last := waitFor(t, ch, model.StatusCompleted)
	if first.Message != "《测试小说》下载完成!" || last.Message != "榜单扫描全部完成!" {
		t.Fatalf("unexpected events %q %q", first.Message, last.Message)
	}
}

func TestFileCommands(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)
	r := s.Router()

	code, _ := do(t, r, http.MethodPost, "/api/ensure_workspace_dirs", `{"workspace_root":"`+root+`"}`)
	if code != http.StatusOK {
		t.Fatalf("ensure_workspace_dirs failed: %d", code)
	}
	base := filepath.Join(root, storage.DownloadsDir)
	novelDir, _ := storage.EnsureNovelDir(base, "书")
	_ = storage.WriteMetadata(novelDir, &model.NovelMetadata{Title: "书"})
	_ = os.WriteFile(filepath.Join(novelDir, "01.txt"), []byte("正文"), 0644)

	code, resp := do(t, r, http.MethodGet, "/api/get_file_tree?"+url.Values{"dir_name": {base}}.Encode(), "")
	tree := resp.Data.([]interface{})
	if code != http.StatusOK || len(tree) != 1 || tree[0].(map[string]interface{})["name"] != "书" {
		t.Fatalf("unexpected tree %d %+v", code, resp)
	}

	query := url.Values{"dir": {base}, "filename": {filepath.Join("书", "01.txt")}}
	code, resp = do(t, r, http.MethodGet, "/api/get_file_content?"+query.Encode(), "")
	if code != http.StatusOK || resp.Data != "正文" {
		t.Fatalf("unexpected content %d %+v", code, resp)
	}

	code, _ = do(t, r, http.MethodPost, "/api/update_novel_metadata",
		`{"dir_name":"`+base+`","novel_name":"书","metadata":{"genre":"玄幻"}}`)
	if code != http.StatusOK {
		t.Fatalf("update_novel_metadata failed: %d", code)
	}
	code, _ = do(t, r, http.MethodPost, "/api/update_novel_metadata",
		`{"dir_name":"`+base+`","novel_name":"无","metadata":{}}`)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	code, resp = do(t, r, http.MethodPost, "/api/export_chapter", `{"novel_title":"书","chapter_index":1,"content":"# 细纲"}`)
	if code != http.StatusOK || resp.Data != filepath.Join(root, storage.ResultDir, "书", "1.md") {
		t.Fatalf("unexpected export %d %+v", code, resp)
	}

	code, resp = do(t, r, http.MethodPost, "/api/delete_chapter",
		`{"dir_name":"`+base+`","novel_name":"书","chapter_file":"01.txt"}`)
	if code != http.StatusOK || resp.Data != "已删除章节: 01.txt" {
		t.Fatalf("unexpected delete_chapter %d %+v", code, resp)
	}
	code, resp = do(t, r, http.MethodPost, "/api/delete_novel", `{"dir_name":"`+base+`","novel_name":"书"}`)
	if code != http.StatusOK || resp.Data != "已删除《书》" {
		t.Fatalf("unexpected delete_novel %d %+v", code, resp)
	}
	code, resp = do(t, r, http.MethodPost, "/api/delete_novel", `{"dir_name":"`+base+`","novel_name":"书"}`)
	if code != http.StatusNotFound || resp.Message != "小说目录不存在" {
		t.Fatalf("unexpected second delete %d %+v", code, resp)
	}

	code, resp = do(t, r, http.MethodGet, "/api/read_log_file?"+url.Values{"workspace_root": {root}}.Encode(), "")
	if code != http.StatusOK || !strings.Contains(resp.Data.(string), "已删除小说: 书") {
		t.Fatalf("unexpected log %d %+v", code, resp)
	}
	code, _ = do(t, r, http.MethodPost, "/api/clear_log", `{"workspace_root":"`+root+`"}`)
	if code != http.StatusOK {
		t.Fatalf("clear_log failed: %d", code)
	}
	_, resp = do(t, r, http.MethodGet, "/api/read_log_file", "")
	if resp.Data != nil && resp.Data != "" {
		t.Fatalf("log not cleared: %+v", resp)
	}
}

func TestAiCommands(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/models") {
			w.Write([]byte(`{"data":[{"id":"m1"}]}`))
			return
		}
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"细纲\"}}]}\n\ndata: [DONE]\n"))
	}))
	defer llm.Close()

	s := newTestServer(t, t.TempDir())
	r := s.Router()
	ch := s.Hub().Subscribe()
	defer s.Hub().Unsubscribe(ch)

	code, resp := do(t, r, http.MethodPost, "/api/fetch_ai_models", `{"api_base":"`+llm.URL+`","api_key":"k"}`)
	if code != http.StatusOK || resp.Data.([]interface{})[0] != "m1" {
		t.Fatalf("unexpected models %d %+v", code, resp)
	}

	code, resp = do(t, r, http.MethodGet, "/api/get_auto_analysis_prompt", "")
	if code != http.StatusOK || resp.Data != ai.AutoAnalysisPrompt {
		t.Fatalf("unexpected prompt %d", code)
	}

	code, _ = do(t, r, http.MethodPost, "/api/start_ai_analysis", `{"api_base":"`+llm.URL+`","model":"m1","content":"正文"}`)
	if code != http.StatusOK {
		t.Fatalf("start_ai_analysis failed: %d", code)
	}
	timeout := time.After(5 * time.Second)
	var chunks []string
	for {
		select {
		case msg := <-ch:
			switch p := msg.Payload.(type) {
			case model.ChunkEvent:
				chunks = append(chunks, p.Chunk)
			case model.ProgressEvent:
				if p.Status == model.StatusDone {
					if strings.Join(chunks, "") != "细纲" {
						t.Fatalf("unexpected chunks %q", chunks)
					}
					return
				}
			}
		case <-timeout:
			t.Fatalf("analysis did not finish")
		}
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %s", resp.Header.Get("Content-Type"))
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	events.Progress(s.Hub(), "正在获取元数据", model.StatusRunning)

	var buf bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line + "\n")
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	got := buf.String()
	if !strings.Contains(got, "event:download-progress") || !strings.Contains(got, `"status":"running"`) {
		t.Fatalf("unexpected stream:\n%s", got)
	}
}

func TestStatusMapping(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	code, _ := do(t, s.Router(), http.MethodGet, "/api/get_file_content?dir=/tmp&filename=../etc/passwd", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for escaping path, got %d", code)
	}
}
