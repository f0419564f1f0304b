package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hooolee/novel-splitter/browser"
	"github.com/Hooolee/novel-splitter/config"
	"github.com/Hooolee/novel-splitter/downloader/qidian"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/utils"
)

type rootArgs struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

var (
	rArgs     rootArgs
	appConfig *config.Config
)

var RootCmd = &cobra.Command{
	Use:               "novel-splitter",
	Short:             "Download web novels chapter by chapter and analyse them with an LLM",
	Long:              "Download web novels chapter by chapter and analyse them with an LLM",
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&rArgs.ConfigPath, "config", "c", "", "config file (yaml)")
	RootCmd.PersistentFlags().StringVar(&rArgs.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&rArgs.LogFormat, "log-format", "", "log format: text or json")
}

func initApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rArgs.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if rArgs.LogLevel != "" {
		cfg.Log.Level = rArgs.LogLevel
	}
	if rArgs.LogFormat != "" {
		cfg.Log.Format = rArgs.LogFormat
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	appConfig = cfg
	return nil
}

func newWorker(cfg *config.Config) *browser.Worker {
	return browser.NewWorker(browser.Config{
		Probe:     qidian.Probe,
		Timeout:   cfg.Browser.Timeout,
		ExecPath:  cfg.Browser.ExecPath,
		UserAgent: utils.DesktopUserAgent,
	})
}
