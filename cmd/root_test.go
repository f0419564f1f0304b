package cmd

import (
	"testing"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/model"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"download", "novel"},
		{"download", "rank"},
		{"models"},
		{"analyze"},
		{"version"},
	} {
		c, _, err := RootCmd.Find(path)
		if err != nil {
			t.Fatalf("failed to find %v: %v", path, err)
		}
		if c.Name() != path[len(path)-1] {
			t.Fatalf("expected %s, got %s", path[len(path)-1], c.Name())
		}
	}
}

func TestInitAppOverrides(t *testing.T) {
	defer func() { rArgs = rootArgs{} }()
	rArgs = rootArgs{LogLevel: "debug", LogFormat: "json"}

	if err := initApp(RootCmd, nil); err != nil {
		t.Fatalf("failed to init: %v", err)
	}
	if appConfig.Log.Level != "debug" || appConfig.Log.Format != "json" {
		t.Fatalf("flags not applied: %+v", appConfig.Log)
	}
}

func TestInitAppMissingConfig(t *testing.T) {
	defer func() { rArgs = rootArgs{} }()
	rArgs = rootArgs{ConfigPath: t.TempDir() + "/missing.yaml"}

	if err := initApp(RootCmd, nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestNewPipeline(t *testing.T) {
	if err := initApp(RootCmd, nil); err != nil {
		t.Fatalf("failed to init: %v", err)
	}

	_, _, err := newPipeline(downloadCommonArgs{Platform: "jjwxc"}, appConfig.HTTP.Timeout)
	if apperr.KindOf(err) != apperr.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}

	p, cleanup, err := newPipeline(downloadCommonArgs{Platform: "fanqie", Workspace: t.TempDir()}, appConfig.HTTP.Timeout)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	defer cleanup()
	if p.Downloader.Platform() != model.PlatformFanqie {
		t.Fatalf("unexpected platform: %s", p.Downloader.Platform())
	}
}
