// Package fanqie scrapes fanqienovel.com with plain HTTP requests.
package fanqie

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/utils"
)

const Host = "https://fanqienovel.com"

type Options struct {
	Client *resty.Client
	// Host overrides the site origin, without trailing slash.
	Host   string
	Logger *slog.Logger
}

type Fanqie struct {
	client *resty.Client
	host   string
	logger *slog.Logger
}

func New(opts Options) *Fanqie {
	if opts.Client == nil {
		opts.Client = utils.NewRestyClient(utils.RestyOptions{UserAgent: utils.GenericUserAgent})
	}
	if opts.Host == "" {
		opts.Host = Host
	}
	return &Fanqie{
		client: opts.Client,
		host:   strings.TrimSuffix(opts.Host, "/"),
		logger: logger.OrDefault(opts.Logger).With("platform", model.PlatformFanqie),
	}
}

func (f *Fanqie) Platform() model.Platform {
	return model.PlatformFanqie
}

func (f *Fanqie) getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", utils.GenericUserAgent).
		Get(url)
	if err != nil {
		return nil, apperr.Transport(fmt.Sprintf("failed to get %s", url), err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperr.New(apperr.KindTransport, fmt.Sprintf("failed to get %s: %v", url, resp.Status()))
	}
	doc, err := utils.ParseHTML(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "", err)
	}
	return doc, nil
}

func (f *Fanqie) FetchRankList(ctx context.Context, rankUrl string) ([]string, error) {
	doc, err := f.getDocument(ctx, rankUrl)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)
	seen := make(map[string]struct{})
	doc.Find(".rank-book-item .title a, .rank-book-item a.title").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		full := utils.AbsUrl(href, f.host)
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		links = append(links, full)
	})

	f.logger.Info("fanqie: rank list parsed", "url", rankUrl, "novels", len(links))
	return links, nil
}

func (f *Fanqie) FetchNovelMetadata(ctx context.Context, novelUrl string) (*model.NovelMetadata, error) {
	doc, err := f.getDocument(ctx, novelUrl)
	if err != nil {
		return nil, err
	}

	meta := &model.NovelMetadata{
		Url:       novelUrl,
		Tags:      make([]string, 0),
		WordCount: model.UnknownWordCount,
	}
	meta.Title = strings.TrimSpace(doc.Find(".info-name h1").First().Text())
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(strings.Split(doc.Find("title").First().Text(), "_")[0])
	}
	if meta.Title == "" {
		return nil, apperr.Format("failed to find novel title: %s", novelUrl)
	}

	doc.Find(".info-label span").Each(func(i int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	})

	count := doc.Find(".info-count-word").First()
	if value := strings.TrimSpace(count.Find(".detail").Text()); value != "" {
		meta.WordCount = value + strings.TrimSpace(count.Find(".text").Text())
	}

	meta.Description = strings.TrimSpace(doc.Find(".page-abstract-content").First().Text())
	return meta, nil
}

// FetchChapterList returns the catalog in page order with site-relative hrefs.
func (f *Fanqie) FetchChapterList(ctx context.Context, novelUrl string) ([]model.ChapterRef, error) {
	doc, err := f.getDocument(ctx, novelUrl)
	if err != nil {
		return nil, err
	}

	chapters := make([]model.ChapterRef, 0)
	doc.Find(".chapter-item-title").Each(func(i int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" {
			return
		}
		chapters = append(chapters, model.ChapterRef{Title: s.Text(), Href: href})
	})
	return chapters, nil
}

func (f *Fanqie) DownloadChapter(ctx context.Context, chapterUrl string) (string, string, error) {
	doc, err := f.getDocument(ctx, chapterUrl)
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find(".muye-reader-title").First().Text())
	container := doc.Find(".muye-reader-content").First()
	if container.Length() == 0 {
		return "", "", apperr.Gating("failed to find chapter content: %s", chapterUrl)
	}

	lines := make([]string, 0)
	container.Find("p").Each(func(i int, s *goquery.Selection) {
		if line := strings.TrimSpace(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return title, strings.TrimSpace(container.Text()), nil
	}
	return title, strings.Join(lines, "\n\n"), nil
}

// SelectBatch drops the first catalog entry, which the site renders as the
// latest-chapter banner, then takes count.
func (f *Fanqie) SelectBatch(chapters []model.ChapterRef, count int) []model.ChapterRef {
	if len(chapters) <= 1 || count <= 0 {
		return []model.ChapterRef{}
	}
	chapters = chapters[1:]
	if count < len(chapters) {
		chapters = chapters[:count]
	}
	return chapters
}

func (f *Fanqie) ChapterUrl(href string) string {
	return f.host + href
}
