package model

import "github.com/Hooolee/novel-splitter/apperr"

// Platform identifies a supported novel site. The UI sends the tag verbatim.
type Platform string

const (
	PlatformFanqie Platform = "fanqie"
	PlatformQidian Platform = "qidian"
)

func ParsePlatform(tag string) (Platform, error) {
	switch Platform(tag) {
	case PlatformFanqie, PlatformQidian:
		return Platform(tag), nil
	}
	return "", apperr.Input("不支持的平台: %s", tag)
}

// UnknownWordCount is stored when a page does not expose a word count.
const UnknownWordCount = "未知"

// NovelMetadata is persisted as info.json in the novel directory.
type NovelMetadata struct {
	Title       string   `json:"title"`
	Url         string   `json:"url"`
	Tags        []string `json:"tags"`
	WordCount   string   `json:"word_count"`
	Description string   `json:"description"`
}

// ChapterRef is one catalog entry. Href is site-relative for fanqie.
type ChapterRef struct {
	Title string
	Href  string
}

type Chapter struct {
	Index int
	Title string
	Url   string
	Body  string
}
