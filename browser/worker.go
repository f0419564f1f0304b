// Package browser renders JavaScript-gated pages in a headless Chrome tab
// and hands the resulting HTML back once the page looks ready.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/metrics"
	"github.com/Hooolee/novel-splitter/utils"
)

// WindowLabel names the single worker tab in logs.
const WindowLabel = "spider_worker"

type Config struct {
	Probe Probe
	// Timeout bounds a whole fetch. Default: 45s.
	Timeout   time.Duration
	ExecPath  string
	UserAgent string
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = utils.DesktopUserAgent
	}
	c.Logger = logger.OrDefault(c.Logger)
}

// Worker owns one Chrome process and at most one worker tab at a time.
// Callers must not overlap FetchViaWindow calls; the download queue runs them
// one after another.
type Worker struct {
	cfg Config

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	visible       bool
	closeWindow   context.CancelFunc
}

func NewWorker(cfg Config) *Worker {
	cfg.defaults()
	return &Worker{cfg: cfg}
}

type spiderResult struct {
	Html string `json:"html"`
}

// FetchViaWindow opens the worker tab at url and returns the outer HTML the
// probe script reports. An empty page is still a success.
func (w *Worker) FetchViaWindow(ctx context.Context, url string, visible bool) (string, error) {
	start := time.Now()
	log := w.cfg.Logger.With("window", WindowLabel, "url", url)

	w.destroyWindow()

	browserCtx, err := w.ensureBrowser(visible)
	if err != nil {
		metrics.BrowserFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", apperr.Wrap(apperr.KindTransport, "Failed to create window", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	w.mu.Lock()
	w.closeWindow = cancelTab
	w.mu.Unlock()
	defer w.destroyWindow()

	slot := newOneshot[string]()
	defer slot.Close()

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != Binding {
			return
		}
		var res spiderResult
		if err := utils.Unmarshal([]byte(called.Payload), &res); err != nil {
			log.Warn("browser: malformed spider payload", "error", err)
			return
		}
		if slot.Send(res.Html) {
			log.Debug("browser: received html", "bytes", len(res.Html))
		}
	})

	script := w.cfg.Probe.Script()
	err = chromedp.Run(tabCtx,
		runtime.AddBinding(Binding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
	)
	if err != nil {
		metrics.BrowserFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", apperr.Wrap(apperr.KindTransport, "Failed to create window", err)
	}

	navDone := make(chan error, 1)
	go func() {
		navDone <- chromedp.Run(tabCtx, chromedp.Navigate(url))
	}()

	timer := time.NewTimer(w.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case html, ok := <-slot.Recv():
			if !ok {
				metrics.BrowserFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
				return "", apperr.New(apperr.KindTransport, "Channel closed")
			}
			metrics.BrowserFetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
			log.Info("browser: page harvested", "bytes", len(html), "elapsed", time.Since(start))
			return html, nil
		case err := <-navDone:
			navDone = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				metrics.BrowserFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
				return "", apperr.Transport("navigation failed", err)
			}
		case <-timer.C:
			metrics.BrowserFetchDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
			log.Warn("browser: timeout waiting for spider")
			return "", apperr.Timeout("Timeout waiting for spider")
		case <-ctx.Done():
			metrics.BrowserFetchDuration.WithLabelValues("canceled").Observe(time.Since(start).Seconds())
			return "", ctx.Err()
		}
	}
}

// ensureBrowser starts Chrome on first use and restarts it when the
// requested visibility differs from the running process.
func (w *Worker) ensureBrowser(visible bool) (context.Context, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.browserCtx != nil && w.visible == visible {
		return w.browserCtx, nil
	}
	w.closeBrowserLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !visible),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.UserAgent(w.cfg.UserAgent),
	)
	if w.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(w.cfg.ExecPath))
	}

	w.allocCtx, w.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	w.browserCtx, w.browserCancel = chromedp.NewContext(w.allocCtx)

	if err := chromedp.Run(w.browserCtx, chromedp.Navigate("about:blank")); err != nil {
		w.closeBrowserLocked()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	w.visible = visible

	w.cfg.Logger.Info("browser: initialized", "visible", visible)
	return w.browserCtx, nil
}

func (w *Worker) destroyWindow() {
	w.mu.Lock()
	cancel := w.closeWindow
	w.closeWindow = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Worker) closeBrowserLocked() {
	if w.browserCancel != nil {
		w.browserCancel()
	}
	if w.allocCancel != nil {
		w.allocCancel()
	}
	w.browserCtx, w.browserCancel = nil, nil
	w.allocCtx, w.allocCancel = nil, nil
}

// Close tears down the tab and the Chrome process.
func (w *Worker) Close() error {
	w.destroyWindow()
	w.mu.Lock()
	w.closeBrowserLocked()
	w.mu.Unlock()
	return nil
}
