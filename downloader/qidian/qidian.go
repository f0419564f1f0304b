// Package qidian scrapes qidian.com. Every page goes through the browser
// worker because the desktop site sits behind a JavaScript challenge; book
// metadata falls back to the lighter mobile site over plain HTTP.
package qidian

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/browser"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
	"github.com/Hooolee/novel-splitter/utils"
)

const (
	DesktopHost  = "https://www.qidian.com"
	MobileHost   = "https://m.qidian.com"
	unknownTitle = "Unknown Title"
)

// Probe holds the selectors that mean a qidian page finished rendering:
// catalog item, chapter title, book intro and reader body.
var Probe = browser.Probe{
	Signals: []string{".y-list__item", ".chapter-li-a", ".j_chapterName", ".book-intro", "#book-intro-detail", "main.content"},
}

var (
	bookIdRegexp = regexp.MustCompile(`book/([0-9]+)`)
	wafMarkers   = []string{"Just a moment", "Security checking"}
)

const (
	rankSelector    = "#rank-view-list .book-mid-info h2 a, .book-img-text .book-mid-info h2 a, .rank-list a.book-layout"
	catalogSelector = ".y-list__item a, a[class*='chapterItem']"
	titleSelector   = ".j_chapterName, .text-head h3, h1, .chapter-name"
	contentSelector = "main.content, .read-content, .main-text-wrap, .j_readContent, #reader-content"
)

// Renderer loads a URL in a real browser and returns the rendered HTML.
type Renderer interface {
	FetchViaWindow(ctx context.Context, url string, visible bool) (string, error)
}

type Options struct {
	Renderer Renderer
	// Client serves the mobile metadata fallback.
	Client       *resty.Client
	DesktopHost  string
	MobileHost   string
	DebugVisible bool
	// DebugDir receives a snapshot of every rendered page when set.
	DebugDir string
	FileLog  storage.FileLog
	Logger   *slog.Logger
}

type Qidian struct {
	renderer     Renderer
	client       *resty.Client
	desktop      string
	mobile       string
	debugVisible bool
	debugDir     string
	fileLog      storage.FileLog
	logger       *slog.Logger
}

func New(opts Options) *Qidian {
	if opts.Client == nil {
		opts.Client = utils.NewRestyClient(utils.RestyOptions{Timeout: 30 * time.Second})
	}
	if opts.DesktopHost == "" {
		opts.DesktopHost = DesktopHost
	}
	if opts.MobileHost == "" {
		opts.MobileHost = MobileHost
	}
	return &Qidian{
		renderer:     opts.Renderer,
		client:       opts.Client,
		desktop:      strings.TrimSuffix(opts.DesktopHost, "/"),
		mobile:       strings.TrimSuffix(opts.MobileHost, "/"),
		debugVisible: opts.DebugVisible,
		debugDir:     opts.DebugDir,
		fileLog:      opts.FileLog,
		logger:       logger.OrDefault(opts.Logger).With("platform", model.PlatformQidian),
	}
}

func (q *Qidian) Platform() model.Platform {
	return model.PlatformQidian
}

func (q *Qidian) render(ctx context.Context, target string) (string, error) {
	if q.renderer == nil {
		return "", apperr.New(apperr.KindTransport, "browser worker unavailable")
	}
	return q.renderer.FetchViaWindow(ctx, target, q.debugVisible)
}

func (q *Qidian) snapshot(name, html string) {
	if q.debugDir == "" {
		return
	}
	path := filepath.Join(q.debugDir, name)
	if err := os.MkdirAll(q.debugDir, 0755); err != nil {
		q.logger.Warn("qidian: failed to create debug directory", "dir", q.debugDir, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		q.logger.Warn("qidian: failed to save snapshot", "path", path, "error", err)
		return
	}
	q.fileLog.Appendf("Saved %s (size: %d bytes)", path, len(html))
}

func (q *Qidian) isMobile(raw string) bool {
	u, err := url.Parse(raw)
	m, merr := url.Parse(q.mobile)
	return err == nil && merr == nil && u.Host == m.Host
}

// desktopUrl moves a mobile link onto the desktop host, keeping path and query.
func (q *Qidian) desktopUrl(raw string) string {
	if !q.isMobile(raw) {
		return raw
	}
	u, err := url.Parse(raw)
	d, derr := url.Parse(q.desktop)
	if err != nil || derr != nil {
		return raw
	}
	u.Scheme, u.Host = d.Scheme, d.Host
	return u.String()
}

func bookId(raw string) (string, bool) {
	matches := bookIdRegexp.FindStringSubmatch(raw)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

func isWafTitle(title string) bool {
	for _, marker := range wafMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// FetchRankList returns book links in rank order, first occurrence wins.
func (q *Qidian) FetchRankList(ctx context.Context, rankUrl string) ([]string, error) {
	q.fileLog.Appendf("Starting browser spider for rank list: %s", rankUrl)
	html, err := q.render(ctx, rankUrl)
	if err != nil {
		return nil, fmt.Errorf("browser spider failed: %w", err)
	}
	q.snapshot("debug_2_rank.html", html)

	doc, err := utils.ParseRendered(html)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "", err)
	}

	base := q.desktop
	if q.isMobile(rankUrl) {
		base = q.mobile
	}

	links := make([]string, 0)
	seen := make(map[string]struct{})
	doc.Find(rankSelector).Each(func(i int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" {
			return
		}
		full := utils.AbsUrl(href, base)
		if !strings.Contains(full, "/book/") {
			return
		}
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		links = append(links, full)
	})

	q.fileLog.Appendf("Found %d novels in rank list.", len(links))
	return links, nil
}

// FetchNovelMetadata renders the book page. A worker failure or a challenge
// page falls through to the mobile site.
func (q *Qidian) FetchNovelMetadata(ctx context.Context, novelUrl string) (*model.NovelMetadata, error) {
	start := time.Now()
	q.fileLog.Appendf("[START] fetch_novel_metadata: %s", novelUrl)

	html, err := q.render(ctx, novelUrl)
	if err != nil {
		q.logger.Warn("qidian: browser spider failed, trying mobile fallback", "url", novelUrl, "error", err)
		return q.fetchMobileMetadata(ctx, novelUrl)
	}
	q.fileLog.Appendf("Browser spider succeeded, got %d bytes", len(html))
	q.snapshot("debug_1_metadata.html", html)

	doc, err := utils.ParseRendered(html)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "", err)
	}

	pageTitle := doc.Find("title").First().Text()
	title := strings.TrimSpace(doc.Find("h1, #bookName").First().Text())
	if title == "" {
		title = strings.TrimSpace(strings.Split(pageTitle, "_")[0])
	}
	if title == "" {
		title = unknownTitle
	}

	if isWafTitle(title) || isWafTitle(pageTitle) {
		q.fileLog.Appendf("[FAILED] fetch_novel_metadata: WAF detected after %d ms", time.Since(start).Milliseconds())
		q.logger.Warn("qidian: browser spider still caught by WAF, trying mobile fallback", "url", novelUrl)
		return q.fetchMobileMetadata(ctx, novelUrl)
	}

	meta := &model.NovelMetadata{
		Title:       title,
		Url:         novelUrl,
		Tags:        collectTags(doc),
		WordCount:   model.UnknownWordCount,
		Description: description(doc),
	}
	if count := strings.TrimSpace(doc.Find(".count em").First().Text()); count != "" {
		meta.WordCount = count
	}

	q.fileLog.Appendf("[SUCCESS] fetch_novel_metadata: %s in %d ms", meta.Title, time.Since(start).Milliseconds())
	return meta, nil
}

func description(doc *goquery.Document) string {
	if s := doc.Find("#book-intro-detail").First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text())
	}
	if s := doc.Find(".book-intro, .intro").First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text())
	}
	return doc.Find("meta[name='description']").First().AttrOr("content", "")
}

// collectTags merges attribute tags and label tags, sorted and deduplicated.
func collectTags(doc *goquery.Document) []string {
	tags := make([]string, 0)
	doc.Find(".book-attribute a, .all-label a").Each(func(i int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	slices.Sort(tags)
	return slices.Compact(tags)
}

func (q *Qidian) fetchMobileMetadata(ctx context.Context, novelUrl string) (*model.NovelMetadata, error) {
	id, ok := bookId(novelUrl)
	if !ok {
		return nil, apperr.Input("无法从 URL 提取 bookId")
	}
	mobileUrl := fmt.Sprintf("%s/book/%s", q.mobile, id)

	resp, err := q.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", utils.MobileUserAgent).
		SetHeader("Referer", q.mobile+"/").
		Get(mobileUrl)
	if err != nil {
		return nil, apperr.Transport("移动端请求失败", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperr.New(apperr.KindTransport, fmt.Sprintf("移动端请求失败: %v", resp.Status()))
	}

	doc, err := utils.ParseHTML(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "", err)
	}

	title := strings.TrimSpace(doc.Find("h1, .book-title, .detail h2").First().Text())
	if title == "" {
		title = unknownTitle
	}

	desc := ""
	if s := doc.Find(".book-intro, .intro, meta[name='description']").First(); s.Length() > 0 {
		if goquery.NodeName(s) == "meta" {
			desc = s.AttrOr("content", "")
		} else {
			desc = strings.TrimSpace(s.Text())
		}
	}

	q.fileLog.Appendf("[SUCCESS] fetch_mobile_metadata: %s", title)
	return &model.NovelMetadata{
		Title:       title,
		Url:         mobileUrl,
		Tags:        make([]string, 0),
		WordCount:   model.UnknownWordCount,
		Description: desc,
	}, nil
}

// FetchChapterList renders the mobile catalog of the book. An empty catalog
// is an error so the caller never reports a finished download of nothing.
func (q *Qidian) FetchChapterList(ctx context.Context, novelUrl string) ([]model.ChapterRef, error) {
	start := time.Now()
	q.fileLog.Appendf("[START] fetch_chapter_list: %s", novelUrl)

	id, ok := bookId(novelUrl)
	if !ok {
		q.fileLog.Append("[FAILED] fetch_chapter_list: Failed to extract book ID for catalog")
		return nil, apperr.Input("Failed to extract book ID for catalog")
	}
	catalogUrl := fmt.Sprintf("%s/book/%s/catalog", q.mobile, id)
	q.fileLog.Appendf("Fetching catalog from: %s", catalogUrl)

	html, err := q.render(ctx, catalogUrl)
	if err != nil {
		q.fileLog.Appendf("[FAILED] fetch_chapter_list: Browser spider error: %v", err)
		return nil, err
	}
	q.fileLog.Appendf("Browser spider returned HTML: %d bytes", len(html))
	q.snapshot("debug_2_catalog.html", html)

	doc, err := utils.ParseRendered(html)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "", err)
	}

	chapters := make([]model.ChapterRef, 0)
	doc.Find(catalogSelector).Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		href := s.AttrOr("href", "")
		if title == "" || href == "" || strings.Contains(href, "javascript") {
			return
		}
		full := utils.AbsUrl(href, q.mobile)
		if strings.Contains(full, "/chapter/") || strings.Contains(full, "/read/") {
			chapters = append(chapters, model.ChapterRef{Title: title, Href: full})
		}
	})

	if len(chapters) == 0 {
		q.fileLog.Appendf("Qidian Spider: No chapters found! HTML Snippet: %s", utils.Snippet(html, 1000))
		q.snapshot("qidian_catalog_debug.html", html)
		return nil, apperr.Gating("No chapters found in catalog: %s", catalogUrl)
	}

	q.fileLog.Appendf("[SUCCESS] fetch_chapter_list: Found %d chapters in %d ms", len(chapters), time.Since(start).Milliseconds())
	return chapters, nil
}

// DownloadChapter renders the desktop reader page, rewriting mobile links.
func (q *Qidian) DownloadChapter(ctx context.Context, chapterUrl string) (string, string, error) {
	start := time.Now()
	q.fileLog.Appendf("[START] download_chapter: %s", chapterUrl)

	target := q.desktopUrl(chapterUrl)

	html, err := q.render(ctx, target)
	if err != nil {
		q.fileLog.Appendf("[FAILED] download_chapter: Browser spider error: %v", err)
		return "", "", err
	}
	q.snapshot("debug_3_chapter.html", html)

	doc, err := utils.ParseRendered(html)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindFormat, "", err)
	}

	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	container := doc.Find(contentSelector).First()
	if container.Length() == 0 {
		q.fileLog.Appendf("Failed to find content for url: %s\nSelectors tried: %s\nHTML Snippet: %s", chapterUrl, contentSelector, utils.Snippet(html, 500))
		q.fileLog.Appendf("[FAILED] download_chapter: Content not found after %d ms", time.Since(start).Milliseconds())
		return "", "", apperr.Gating("Failed to find content (WAF or Selector Mismatch)")
	}

	lines := make([]string, 0)
	container.Find("p").Each(func(i int, s *goquery.Selection) {
		lines = append(lines, strings.TrimSpace(s.Text()))
	})
	body := strings.Join(lines, "\n\n")
	if len(lines) == 0 {
		body = strings.TrimSpace(container.Text())
	}

	q.fileLog.Appendf("[SUCCESS] download_chapter: %s (%d chars) in %d ms", title, len(body), time.Since(start).Milliseconds())
	return title, body, nil
}

func (q *Qidian) SelectBatch(chapters []model.ChapterRef, count int) []model.ChapterRef {
	if count <= 0 {
		return []model.ChapterRef{}
	}
	if count < len(chapters) {
		chapters = chapters[:count]
	}
	return chapters
}

// ChapterUrl returns href unchanged; catalog links are already absolute.
func (q *Qidian) ChapterUrl(href string) string {
	return href
}
