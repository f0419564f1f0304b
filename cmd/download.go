package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hooolee/novel-splitter/downloader"
	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
	"github.com/Hooolee/novel-splitter/utils"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a novel or a ranking list",
	Long:  "Download a novel or a ranking list",
}

var downloadNovelCmd = &cobra.Command{
	Use:   "novel",
	Short: "Download the first chapters of a novel, skipping those already on disk",
	Long:  "Download the first chapters of a novel, skipping those already on disk",
	RunE:  runDownloadNovel,
}

var downloadRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Download the first chapters of every novel on a ranking list",
	Long:  "Download the first chapters of every novel on a ranking list",
	RunE:  runDownloadRank,
}

type downloadCommonArgs struct {
	Platform   string
	outputPath string
	Workspace  string
	Visible    bool
}

type downloadNovelArgs struct {
	downloadCommonArgs
	Url   string `validate:"required"`
	Count int
}

type downloadRankArgs struct {
	downloadCommonArgs
	RankUrl   string `validate:"required"`
	MaxNovels int
	Count     int
}

var (
	novelArgs downloadNovelArgs
	rankArgs  downloadRankArgs
)

func addCommonFlags(cmd *cobra.Command, a *downloadCommonArgs) {
	cmd.Flags().StringVarP(&a.Platform, "platform", "p", string(model.PlatformFanqie), "platform: fanqie or qidian")
	cmd.Flags().StringVarP(&a.outputPath, "output-path", "o", "./downloads", "output path")
	cmd.Flags().StringVarP(&a.Workspace, "workspace", "w", "", "workspace root for app.log, defaults to workspace.root")
	cmd.Flags().BoolVar(&a.Visible, "visible", false, "show the browser window")
}

func init() {
	downloadNovelCmd.Flags().StringVarP(&novelArgs.Url, "url", "u", "", "novel url")
	downloadNovelCmd.Flags().IntVarP(&novelArgs.Count, "count", "n", 10, "number of chapters")
	addCommonFlags(downloadNovelCmd, &novelArgs.downloadCommonArgs)

	downloadRankCmd.Flags().StringVarP(&rankArgs.RankUrl, "rank-url", "u", "", "ranking list url")
	downloadRankCmd.Flags().IntVarP(&rankArgs.MaxNovels, "max-novels", "m", 10, "number of novels")
	downloadRankCmd.Flags().IntVarP(&rankArgs.Count, "count", "n", 5, "number of chapters per novel")
	addCommonFlags(downloadRankCmd, &rankArgs.downloadCommonArgs)

	downloadCmd.AddCommand(downloadNovelCmd)
	downloadCmd.AddCommand(downloadRankCmd)
	RootCmd.AddCommand(downloadCmd)
}

// newPipeline wires a downloader for the platform. The returned cleanup
// closes the browser worker when one was started.
func newPipeline(a downloadCommonArgs, timeout time.Duration) (*downloader.Pipeline, func(), error) {
	platform, err := model.ParsePlatform(a.Platform)
	if err != nil {
		return nil, nil, err
	}

	root := a.Workspace
	if root == "" {
		root = appConfig.Workspace.Root
	}
	fileLog := storage.FileLog{Root: root}

	opts := downloader.Options{
		Client: utils.NewRestyClient(utils.RestyOptions{
			Timeout:    timeout,
			RetryCount: appConfig.HTTP.RetryCount,
			UserAgent:  utils.GenericUserAgent,
		}),
		DebugVisible: a.Visible,
		DebugDir:     appConfig.Browser.DebugDir,
		FileLog:      fileLog,
		Logger:       slog.Default(),
	}
	cleanup := func() {}
	if platform == model.PlatformQidian {
		worker := newWorker(appConfig)
		opts.Renderer = worker
		cleanup = func() { _ = worker.Close() }
	}

	d, err := downloader.New(platform, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &downloader.Pipeline{
		Downloader:   d,
		Emitter:      events.LogEmitter{Logger: slog.Default()},
		FileLog:      fileLog,
		Logger:       slog.Default(),
		MaxAttempts:  appConfig.Download.MaxAttempts,
		RetryDelay:   appConfig.Download.RetryDelay,
		ChapterDelay: appConfig.Download.ChapterDelay,
	}, cleanup, nil
}

func runDownloadNovel(cmd *cobra.Command, args []string) error {
	if novelArgs.Url == "" {
		return fmt.Errorf("novel url is required")
	}
	p, cleanup, err := newPipeline(novelArgs.downloadCommonArgs, appConfig.HTTP.Timeout)
	if err != nil {
		return fmt.Errorf("failed to set up downloader: %w", err)
	}
	defer cleanup()

	res, err := p.DownloadNovel(cmd.Context(), downloader.NovelRequest{
		Url:     novelArgs.Url,
		Count:   novelArgs.Count,
		BaseDir: novelArgs.outputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to download novel: %w", err)
	}
	fmt.Printf("%s: downloaded %d, skipped %d, failed %d\n", res.Title, res.Downloaded, res.Skipped, res.Failed)
	return nil
}

func runDownloadRank(cmd *cobra.Command, args []string) error {
	if rankArgs.RankUrl == "" {
		return fmt.Errorf("rank url is required")
	}
	p, cleanup, err := newPipeline(rankArgs.downloadCommonArgs, appConfig.HTTP.BatchTimeout)
	if err != nil {
		return fmt.Errorf("failed to set up downloader: %w", err)
	}
	defer cleanup()

	results, err := p.DownloadRank(cmd.Context(), downloader.RankRequest{
		RankUrl:       rankArgs.RankUrl,
		MaxNovels:     rankArgs.MaxNovels,
		CountPerNovel: rankArgs.Count,
		BaseDir:       rankArgs.outputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to download rank: %w", err)
	}
	for _, res := range results {
		fmt.Printf("%s: downloaded %d, skipped %d, failed %d\n", res.Title, res.Downloaded, res.Skipped, res.Failed)
	}
	return nil
}
