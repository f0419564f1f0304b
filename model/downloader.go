package model

import "context"

// Downloader is the capability set every platform adapter provides.
type Downloader interface {
	Platform() Platform
	FetchRankList(ctx context.Context, rankUrl string) ([]string, error)
	FetchNovelMetadata(ctx context.Context, novelUrl string) (*NovelMetadata, error)
	FetchChapterList(ctx context.Context, novelUrl string) ([]ChapterRef, error)
	DownloadChapter(ctx context.Context, chapterUrl string) (title string, body string, err error)
	// SelectBatch picks the chapters to download out of a catalog.
	SelectBatch(chapters []ChapterRef, count int) []ChapterRef
	// ChapterUrl turns a catalog href into a fetchable URL.
	ChapterUrl(href string) string
}
