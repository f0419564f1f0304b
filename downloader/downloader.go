// Package downloader dispatches platform tags to their scrapers and drives
// the per-novel and rank-list download flows.
package downloader

import (
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/downloader/fanqie"
	"github.com/Hooolee/novel-splitter/downloader/qidian"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
)

type Options struct {
	Client *resty.Client
	// Renderer is required by browser-routed platforms only.
	Renderer     qidian.Renderer
	DebugVisible bool
	DebugDir     string
	FileLog      storage.FileLog
	Logger       *slog.Logger

	FanqieHost        string
	QidianDesktopHost string
	QidianMobileHost  string
}

func New(platform model.Platform, opts Options) (model.Downloader, error) {
	switch platform {
	case model.PlatformFanqie:
		return fanqie.New(fanqie.Options{
			Client: opts.Client,
			Host:   opts.FanqieHost,
			Logger: opts.Logger,
		}), nil
	case model.PlatformQidian:
		return qidian.New(qidian.Options{
			Renderer:     opts.Renderer,
			Client:       opts.Client,
			DesktopHost:  opts.QidianDesktopHost,
			MobileHost:   opts.QidianMobileHost,
			DebugVisible: opts.DebugVisible,
			DebugDir:     opts.DebugDir,
			FileLog:      opts.FileLog,
			Logger:       opts.Logger,
		}), nil
	default:
		return nil, apperr.Input("不支持的平台: %s", platform)
	}
}
