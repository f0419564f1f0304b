package model

// Progress statuses carried by download-progress and ai-analysis-status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusSkipped   = "skipped"
	StatusStart     = "start"
	StatusDone      = "done"
)

type ProgressEvent struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type ChunkEvent struct {
	Chunk string `json:"chunk"`
}

// AiConfig describes an OpenAI-compatible endpoint.
type AiConfig struct {
	ApiBase string `json:"api_base"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// FileNode is one entry of the download tree shown by the UI.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*FileNode `json:"children"`
}
