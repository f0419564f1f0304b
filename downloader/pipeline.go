package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/metrics"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
	"github.com/Hooolee/novel-splitter/utils"
)

// Pipeline downloads novels one chapter at a time. It is not safe for
// concurrent use: browser-routed platforms share a single worker tab.
type Pipeline struct {
	Downloader model.Downloader
	Emitter    events.Emitter
	FileLog    storage.FileLog
	Logger     *slog.Logger

	// MaxAttempts per chapter. Default: 3.
	MaxAttempts int
	// RetryDelay between attempts of one chapter. Default: 500ms.
	RetryDelay time.Duration
	// ChapterDelay after every fetched chapter. Default: 200ms.
	ChapterDelay time.Duration
}

type NovelRequest struct {
	Url     string
	Count   int
	BaseDir string
	// IsBatch silences per-chapter progress events.
	IsBatch bool
}

type RankRequest struct {
	RankUrl       string
	MaxNovels     int
	CountPerNovel int
	BaseDir       string
}

type Result struct {
	Title      string
	Downloaded int
	Skipped    int
	Failed     int
}

func (p *Pipeline) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p *Pipeline) logger() *slog.Logger {
	return logger.OrDefault(p.Logger).With("platform", p.Downloader.Platform())
}

func (p *Pipeline) emitter() events.Emitter {
	if p.Emitter == nil {
		return events.EmitterFunc(func(string, any) {})
	}
	return p.Emitter
}

// progress mirrors a UI event into app.log and slog.
func (p *Pipeline) progress(msg, status string) {
	p.note(msg, status)
	events.Progress(p.emitter(), msg, status)
}

func (p *Pipeline) note(msg, status string) {
	p.FileLog.Append(msg)
	if status == model.StatusError {
		p.logger().Error(msg)
	} else {
		p.logger().Info(msg, "status", status)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DownloadNovel fetches metadata and catalog, then writes the first
// req.Count chapters of the platform's batch as 01.txt, 02.txt, ... under
// <BaseDir>/<title>/. Existing chapter files are kept and counted as skipped,
// so a second run resumes where the first one stopped. A chapter that fails
// every attempt does not stop the novel.
func (p *Pipeline) DownloadNovel(ctx context.Context, req NovelRequest) (*Result, error) {
	platform := string(p.Downloader.Platform())

	p.progress(fmt.Sprintf("正在获取元数据: %s", req.Url), model.StatusRunning)
	meta, err := p.Downloader.FetchNovelMetadata(ctx, req.Url)
	if err != nil {
		err = fmt.Errorf("获取元数据失败: %w", err)
		p.progress(err.Error(), model.StatusError)
		return nil, err
	}

	safeTitle := utils.SafeTitle(meta.Title)
	novelDir, err := storage.EnsureNovelDir(req.BaseDir, safeTitle)
	if err != nil {
		p.progress(fmt.Sprintf("创建目录失败: %v", err), model.StatusError)
		return nil, err
	}
	if err := storage.WriteMetadata(novelDir, meta); err != nil {
		p.logger().Warn("failed to write metadata", "dir", novelDir, "error", err)
	}

	p.progress(fmt.Sprintf("正在获取章节列表 [%s]...", safeTitle), model.StatusRunning)
	chapters, err := p.Downloader.FetchChapterList(ctx, req.Url)
	if err != nil {
		err = fmt.Errorf("获取章节列表失败: %w", err)
		p.progress(err.Error(), model.StatusError)
		return nil, err
	}

	batch := p.Downloader.SelectBatch(chapters, req.Count)
	p.progress(fmt.Sprintf("准备下载 %d 章 (总请求: %d)...", len(batch), req.Count), model.StatusRunning)
	if len(batch) == 0 {
		p.FileLog.Append("警告: 待下载章节数为 0，任务提前结束。")
	}

	result := &Result{Title: safeTitle}
	for i, ref := range batch {
		path := storage.ChapterPath(novelDir, i+1)

		if storage.ChapterExists(path) {
			msg := fmt.Sprintf("跳过已存在章节 [%s] - %s", safeTitle, ref.Title)
			if req.IsBatch {
				p.note(msg, model.StatusSkipped)
			} else {
				p.progress(msg, model.StatusSkipped)
			}
			metrics.ChaptersTotal.WithLabelValues(platform, model.StatusSkipped).Inc()
			result.Skipped++
			continue
		}

		if !req.IsBatch {
			events.Progress(p.emitter(), fmt.Sprintf("下载 [%s] - %s", safeTitle, ref.Title), model.StatusRunning)
		}

		chapterUrl := p.Downloader.ChapterUrl(ref.Href)
		if err := p.downloadChapter(ctx, i+1, ref, chapterUrl, path); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			msg := fmt.Sprintf("章节下载失败 [%s] - %s: %v", safeTitle, ref.Title, err)
			if req.IsBatch {
				p.note(msg, model.StatusError)
			} else {
				p.progress(msg, model.StatusError)
			}
			metrics.ChaptersTotal.WithLabelValues(platform, "failed").Inc()
			result.Failed++
		} else {
			metrics.ChaptersTotal.WithLabelValues(platform, "downloaded").Inc()
			result.Downloaded++
		}

		if err := sleep(ctx, p.chapterDelay()); err != nil {
			return result, err
		}
	}

	summary := fmt.Sprintf("《%s》下载统计: 新下载 %d 章, 跳过已存在 %d 章", safeTitle, result.Downloaded, result.Skipped)
	if result.Failed > 0 {
		summary += fmt.Sprintf(", 失败 %d 章", result.Failed)
	}
	p.progress(summary, model.StatusRunning)
	return result, nil
}

func (p *Pipeline) chapterDelay() time.Duration {
	if p.ChapterDelay == 0 {
		return 200 * time.Millisecond
	}
	return p.ChapterDelay
}

func (p *Pipeline) retryDelay() time.Duration {
	if p.RetryDelay == 0 {
		return 500 * time.Millisecond
	}
	return p.RetryDelay
}

func (p *Pipeline) downloadChapter(ctx context.Context, index int, ref model.ChapterRef, chapterUrl, path string) error {
	var lastErr error
	attempts := p.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		fetchedTitle, body, err := p.Downloader.DownloadChapter(ctx, chapterUrl)
		if err == nil {
			title := ref.Title
			if title == "" {
				title = fetchedTitle
			}
			metrics.ChapterAttempts.WithLabelValues(string(p.Downloader.Platform())).Observe(float64(attempt))
			return storage.WriteChapter(path, &model.Chapter{
				Index: index,
				Title: title,
				Url:   chapterUrl,
				Body:  body,
			})
		}
		lastErr = err
		p.logger().Warn("chapter attempt failed", "url", chapterUrl, "attempt", attempt, "error", err)
		if err := sleep(ctx, p.retryDelay()); err != nil {
			return err
		}
	}
	return lastErr
}

// RunNovel is the single-novel command: DownloadNovel followed by a terminal
// completed or error event.
func (p *Pipeline) RunNovel(ctx context.Context, req NovelRequest) (*Result, error) {
	platform := string(p.Downloader.Platform())
	req.IsBatch = false
	result, err := p.DownloadNovel(ctx, req)
	if err != nil {
		metrics.NovelsTotal.WithLabelValues(platform, model.StatusError).Inc()
		p.progress(fmt.Sprintf("Error: %v", err), model.StatusError)
		return result, err
	}
	metrics.NovelsTotal.WithLabelValues(platform, model.StatusCompleted).Inc()
	p.progress(fmt.Sprintf("《%s》下载完成!", result.Title), model.StatusCompleted)
	return result, nil
}

// DownloadRank walks a rank list in rank order and downloads each novel in
// turn. A failed novel is reported and skipped.
func (p *Pipeline) DownloadRank(ctx context.Context, req RankRequest) ([]*Result, error) {
	platform := string(p.Downloader.Platform())

	p.progress("开始分析榜单...", model.StatusRunning)
	links, err := p.Downloader.FetchRankList(ctx, req.RankUrl)
	if err != nil {
		p.progress(fmt.Sprintf("榜单获取失败: %v", err), model.StatusError)
		return nil, err
	}

	total := min(len(links), max(req.MaxNovels, 0))
	links = links[:total]
	p.progress(fmt.Sprintf("分析完成，准备抓取前 %d 本小说...", total), model.StatusRunning)

	results := make([]*Result, 0, total)
	for idx, link := range links {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p.progress(fmt.Sprintf("正在处理 [%d/%d] 正在解析...", idx+1, total), model.StatusRunning)

		result, err := p.DownloadNovel(ctx, NovelRequest{
			Url:     link,
			Count:   req.CountPerNovel,
			BaseDir: req.BaseDir,
			IsBatch: true,
		})
		if err != nil {
			metrics.NovelsTotal.WithLabelValues(platform, model.StatusError).Inc()
			p.progress(fmt.Sprintf("Skipped one: %v", err), model.StatusError)
			continue
		}
		metrics.NovelsTotal.WithLabelValues(platform, model.StatusCompleted).Inc()
		p.progress(fmt.Sprintf("《%s》下载完成!", result.Title), model.StatusCompleted)
		results = append(results, result)
	}

	p.progress("榜单扫描全部完成!", model.StatusCompleted)
	return results, nil
}
