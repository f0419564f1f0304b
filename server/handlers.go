package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hooolee/novel-splitter/ai"
	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/downloader"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/storage"
	"github.com/Hooolee/novel-splitter/utils"
)

type startDownloadRequest struct {
	Url                string `json:"url"`
	Count              int    `json:"count"`
	DirName            string `json:"dir_name"`
	Platform           string `json:"platform"`
	DebugSpiderVisible bool   `json:"debug_spider_visible"`
	WorkspaceRoot      string `json:"workspace_root"`
}

type scanRankRequest struct {
	RankUrl            string `json:"rank_url"`
	MaxNovels          int    `json:"max_novels"`
	CountPerNovel      int    `json:"count_per_novel"`
	DirName            string `json:"dir_name"`
	Platform           string `json:"platform"`
	DebugSpiderVisible bool   `json:"debug_spider_visible"`
	WorkspaceRoot      string `json:"workspace_root"`
}

type aiAnalysisRequest struct {
	ApiBase      string `json:"api_base"`
	ApiKey       string `json:"api_key"`
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	Content      string `json:"content"`
	ResponseJSON bool   `json:"response_json"`
}

type updateMetadataRequest struct {
	DirName   string                 `json:"dir_name"`
	NovelName string                 `json:"novel_name"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type deleteRequest struct {
	DirName       string `json:"dir_name"`
	NovelName     string `json:"novel_name"`
	ChapterFile   string `json:"chapter_file"`
	WorkspaceRoot string `json:"workspace_root"`
}

type exportRequest struct {
	NovelTitle    string `json:"novel_title"`
	ChapterIndex  int    `json:"chapter_index"`
	Content       string `json:"content"`
	WorkspaceRoot string `json:"workspace_root"`
}

type workspaceRequest struct {
	WorkspaceRoot string `json:"workspace_root"`
}

type taskResponse struct {
	TaskId  string `json:"task_id"`
	Message string `json:"message"`
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperr.Input("invalid request: %v", err))
		return false
	}
	return true
}

// workspaceRoot falls back to the configured root when a command names none.
func (s *Server) workspaceRoot(root string) string {
	if root != "" {
		return root
	}
	return s.cfg.Workspace.Root
}

func (s *Server) fileLog(root string) storage.FileLog {
	return storage.FileLog{Root: s.workspaceRoot(root)}
}

func (s *Server) pipeline(tag string, visible bool, root string, timeout time.Duration) (*downloader.Pipeline, error) {
	platform, err := model.ParsePlatform(tag)
	if err != nil {
		return nil, err
	}
	fileLog := s.fileLog(root)
	client := utils.NewRestyClient(utils.RestyOptions{
		Timeout:    timeout,
		RetryCount: s.cfg.HTTP.RetryCount,
		UserAgent:  utils.GenericUserAgent,
	})
	d, err := s.newDownloader(platform, downloader.Options{
		Client:       client,
		Renderer:     s.renderer,
		DebugVisible: visible,
		DebugDir:     s.cfg.Browser.DebugDir,
		FileLog:      fileLog,
		Logger:       s.logger,
	})
	if err != nil {
		return nil, err
	}
	return &downloader.Pipeline{
		Downloader:   d,
		Emitter:      s.hub,
		FileLog:      fileLog,
		Logger:       s.logger,
		MaxAttempts:  s.cfg.Download.MaxAttempts,
		RetryDelay:   s.cfg.Download.RetryDelay,
		ChapterDelay: s.cfg.Download.ChapterDelay,
	}, nil
}

func (s *Server) startDownload(c *gin.Context) {
	var req startDownloadRequest
	if !bind(c, &req) {
		return
	}
	if req.Url == "" || req.DirName == "" {
		fail(c, apperr.Input("请输入小说链接"))
		return
	}
	p, err := s.pipeline(req.Platform, req.DebugSpiderVisible, req.WorkspaceRoot, s.cfg.HTTP.Timeout)
	if err != nil {
		fail(c, err)
		return
	}

	id, err := s.queue.Submit("start_download", func(ctx context.Context) error {
		_, err := p.RunNovel(ctx, downloader.NovelRequest{
			Url:     req.Url,
			Count:   req.Count,
			BaseDir: req.DirName,
		})
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, taskResponse{TaskId: id, Message: "Task started"})
}

func (s *Server) scanAndDownloadRank(c *gin.Context) {
	var req scanRankRequest
	if !bind(c, &req) {
		return
	}
	if req.RankUrl == "" || req.DirName == "" {
		fail(c, apperr.Input("请输入榜单链接"))
		return
	}
	p, err := s.pipeline(req.Platform, req.DebugSpiderVisible, req.WorkspaceRoot, s.cfg.HTTP.BatchTimeout)
	if err != nil {
		fail(c, err)
		return
	}

	id, err := s.queue.Submit("scan_and_download_rank", func(ctx context.Context) error {
		_, err := p.DownloadRank(ctx, downloader.RankRequest{
			RankUrl:       req.RankUrl,
			MaxNovels:     req.MaxNovels,
			CountPerNovel: req.CountPerNovel,
			BaseDir:       req.DirName,
		})
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, taskResponse{TaskId: id, Message: "Batch task started"})
}

// startAiAnalysis does not go through the download queue: it never touches
// the browser worker.
func (s *Server) startAiAnalysis(c *gin.Context) {
	var req aiAnalysisRequest
	if !bind(c, &req) {
		return
	}
	id := newTaskId()
	go func() {
		_ = s.ai.Analyze(s.ctx, ai.AnalysisRequest{
			Config:       model.AiConfig{ApiBase: req.ApiBase, ApiKey: req.ApiKey, Model: req.Model},
			Prompt:       req.Prompt,
			Content:      req.Content,
			ResponseJSON: req.ResponseJSON,
		}, s.hub)
	}()
	success(c, taskResponse{TaskId: id, Message: "Analysis started"})
}

func (s *Server) fetchAiModels(c *gin.Context) {
	var req aiAnalysisRequest
	if !bind(c, &req) {
		return
	}
	models, err := s.ai.FetchModels(c.Request.Context(), model.AiConfig{ApiBase: req.ApiBase, ApiKey: req.ApiKey})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, models)
}

func (s *Server) updateNovelMetadata(c *gin.Context) {
	var req updateMetadataRequest
	if !bind(c, &req) {
		return
	}
	s.logger.Info("server: update_novel_metadata", "novel", req.NovelName)
	if err := storage.UpdateMetadata(req.DirName, req.NovelName, req.Metadata); err != nil {
		fail(c, err)
		return
	}
	success(c, "Metadata updated")
}

func (s *Server) getAutoAnalysisPrompt(c *gin.Context) {
	success(c, ai.AutoAnalysisPrompt)
}

func (s *Server) getFileTree(c *gin.Context) {
	tree, err := storage.FileTree(c.Query("dir_name"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, tree)
}

func (s *Server) getFileContent(c *gin.Context) {
	content, err := storage.ReadFile(c.Query("dir"), c.Query("filename"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, content)
}

func (s *Server) deleteNovel(c *gin.Context) {
	var req deleteRequest
	if !bind(c, &req) {
		return
	}
	if err := storage.DeleteNovel(req.DirName, req.NovelName); err != nil {
		fail(c, err)
		return
	}
	s.fileLog(req.WorkspaceRoot).Appendf("已删除小说: %s", req.NovelName)
	success(c, fmt.Sprintf("已删除《%s》", req.NovelName))
}

func (s *Server) deleteChapter(c *gin.Context) {
	var req deleteRequest
	if !bind(c, &req) {
		return
	}
	if err := storage.DeleteChapter(req.DirName, req.NovelName, req.ChapterFile); err != nil {
		fail(c, err)
		return
	}
	s.fileLog(req.WorkspaceRoot).Appendf("已删除章节: %s/%s", req.NovelName, req.ChapterFile)
	success(c, fmt.Sprintf("已删除章节: %s", req.ChapterFile))
}

func (s *Server) exportChapter(c *gin.Context) {
	var req exportRequest
	if !bind(c, &req) {
		return
	}
	root := s.workspaceRoot(req.WorkspaceRoot)
	if root == "" {
		fail(c, apperr.Input("未设置工作区目录"))
		return
	}
	path, err := storage.ExportChapter(root, req.NovelTitle, req.ChapterIndex, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	s.fileLog(root).Appendf("已导出章节到: %s", path)
	success(c, path)
}

func (s *Server) readLogFile(c *gin.Context) {
	root := s.workspaceRoot(strings.TrimSpace(c.Query("workspace_root")))
	if root == "" {
		success(c, storage.NoLogMessage)
		return
	}
	content, err := storage.ReadLog(root)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, content)
}

func (s *Server) clearLog(c *gin.Context) {
	var req workspaceRequest
	if !bind(c, &req) {
		return
	}
	root := s.workspaceRoot(req.WorkspaceRoot)
	if root == "" {
		fail(c, apperr.Input("未设置工作区目录"))
		return
	}
	if err := storage.ClearLog(root); err != nil {
		fail(c, err)
		return
	}
	success(c, "日志已清空")
}

func (s *Server) ensureWorkspaceDirs(c *gin.Context) {
	var req workspaceRequest
	if !bind(c, &req) {
		return
	}
	if err := storage.EnsureWorkspace(req.WorkspaceRoot); err != nil {
		fail(c, err)
		return
	}
	success(c, "Workspace directories created")
}
