// Package protocol defines the wire types exchanged between the goforge
// control plane and its HTTP clients. Handlers decode requests into these
// structs and encode responses from them; no handler invents its own shapes.
package protocol

import "time"

// FileRequest is the body for every /v1/files/* operation. A request is
// either single-file (FilePath set) or bulk (Files present); when Files is
// present the bulk path is taken and FilePath is ignored.
type FileRequest struct {
	FilePath string `json:"filePath,omitempty"`
	Content  string `json:"content,omitempty"`

	// Create flags.
	Overwrite bool `json:"overwrite,omitempty"`

	// Update flags. ShouldSnapshot forces a backup even for plain project
	// files; protected and system files are snapshotted regardless.
	ShouldSnapshot bool `json:"createBackup,omitempty"`

	// Delete flags.
	Force bool `json:"force,omitempty"`

	// List flags.
	Recursive          bool `json:"recursive,omitempty"`
	IncludeHidden      bool `json:"includeHidden,omitempty"`
	IncludeCredentials bool `json:"includeCredentials,omitempty"`

	// Bulk payload. Length 1..50; each item carries the per-item fields.
	Files []FileItem `json:"files,omitempty"`
}

// FileItem is one element of a bulk file request.
type FileItem struct {
	FilePath       string `json:"filePath"`
	Content        string `json:"content,omitempty"`
	Overwrite      bool   `json:"overwrite,omitempty"`
	ShouldSnapshot bool   `json:"createBackup,omitempty"`
	Force          bool   `json:"force,omitempty"`
}

// FileResult is the single-file success response.
type FileResult struct {
	Path       string `json:"path"`
	Size       int64  `json:"size,omitempty"`
	Content    string `json:"content,omitempty"`
	BackupPath string `json:"backupPath,omitempty"`
	Protected  bool   `json:"protected,omitempty"`
	Credential bool   `json:"credential,omitempty"`
	Level      string `json:"level,omitempty"`
	ModTime    string `json:"modTime,omitempty"`
}

// ListEntry is one row of a directory listing.
type ListEntry struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Dir        bool   `json:"dir"`
	Size       int64  `json:"size"`
	Hidden     bool   `json:"hidden"`
	Credential bool   `json:"credential,omitempty"`
}

// ListResult is the response for the list operation.
type ListResult struct {
	Path    string      `json:"path"`
	Entries []ListEntry `json:"entries"`
	Count   int         `json:"count"`
}

// BulkItemResult is the per-index accounting record of a bulk operation.
// Exactly one of Result or Error is set, matching Success.
type BulkItemResult struct {
	Index   int         `json:"index"`
	File    string      `json:"file"`
	Success bool        `json:"success"`
	Result  *FileResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Type    string      `json:"type,omitempty"`
}

// BulkResult aggregates a bulk fan-out. Partial failure is not a batch-level
// error: the HTTP status is 200 whenever the batch structure was valid.
type BulkResult struct {
	TotalFiles    int              `json:"totalFiles"`
	SuccessCount  int              `json:"successCount"`
	ErrorCount    int              `json:"errorCount"`
	ExecutionTime string           `json:"executionTime"`
	Results       []BulkItemResult `json:"results"`
	Errors        []BulkItemResult `json:"errors"`
}

// ExecuteRequest is the body for /v1/execute and /v1/execute/stream.
type ExecuteRequest struct {
	Command           string `json:"command"`
	WorkingDir        string `json:"workingDir,omitempty"`
	TimeoutMs         int    `json:"timeout,omitempty"`
	LongOperation     bool   `json:"longOperation,omitempty"`
	StreamOutput      bool   `json:"streamOutput,omitempty"`
	KeepAliveInterval int    `json:"keepAliveInterval,omitempty"`
}

// ExecuteResult is the non-streaming execution response. A non-zero exit
// code is reported here verbatim, never translated into an HTTP status.
type ExecuteResult struct {
	ID            string    `json:"id"`
	Stdout        string    `json:"stdout"`
	Stderr        string    `json:"stderr"`
	ExitCode      int       `json:"exitCode"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	ElapsedMs     int64     `json:"elapsedMs"`
	LongOperation bool      `json:"longOperation"`
}

// ExecuteDiagnostics accompanies a spawn failure.
type ExecuteDiagnostics struct {
	Command     string `json:"command"`
	WorkingDir  string `json:"workingDir"`
	Path        string `json:"path"`
	Runtime     string `json:"runtime"`
	Platform    string `json:"platform"`
	Arch        string `json:"arch"`
	LikelyCause string `json:"likelyCause,omitempty"`
	InstallHint string `json:"installHint,omitempty"`
}

// ErrorBody is the uniform JSON error envelope.
type ErrorBody struct {
	Error       string              `json:"error"`
	Kind        string              `json:"kind"`
	Stdout      string              `json:"stdout,omitempty"`
	Stderr      string              `json:"stderr,omitempty"`
	ElapsedMs   int64               `json:"elapsedMs,omitempty"`
	Diagnostics *ExecuteDiagnostics `json:"diagnostics,omitempty"`
}

// BrowserRequest is the body for /v1/browser/* operations.
type BrowserRequest struct {
	URL       string `json:"url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Text      string `json:"text,omitempty"`
	Script    string `json:"script,omitempty"`
	FullPage  bool   `json:"fullPage,omitempty"`
	State     string `json:"state,omitempty"`  // waitFor: visible | attached | hidden
	Format    string `json:"format,omitempty"` // content: html | text
	Filter    string `json:"filter,omitempty"` // consoleLogs: type filter
	Drain     bool   `json:"drain,omitempty"`  // consoleLogs: clear after read
	MaxWidth  int    `json:"maxWidth,omitempty"`
	TimeoutMs int    `json:"timeout,omitempty"`
}

// ConsoleEntry is one captured browser console record.
type ConsoleEntry struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
	Stack     string    `json:"stack,omitempty"`
}

// TemplateRequest is the body for /v1/templates/generate.
type TemplateRequest struct {
	TemplateID  string `json:"templateId"`
	ProjectName string `json:"projectName"`
}

// TemplateRecord describes one node the generator created.
type TemplateRecord struct {
	Type string `json:"type"` // "directory" | "file"
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// TemplateResult is the generation response.
type TemplateResult struct {
	TemplateID  string           `json:"templateId"`
	ProjectName string           `json:"projectName"`
	Directories int              `json:"directoriesCreated"`
	Files       int              `json:"filesCreated"`
	Records     []TemplateRecord `json:"records"`
}

// BranchWorkflowRequest is the body for /v1/git/branch-workflow.
type BranchWorkflowRequest struct {
	BranchName string `json:"branchName"`
	Message    string `json:"message,omitempty"`
	Push       bool   `json:"push,omitempty"`
}

// BranchWorkflowResult reports the steps taken.
type BranchWorkflowResult struct {
	Branch    string `json:"branch"`
	Created   bool   `json:"created"`
	Committed bool   `json:"committed"`
	Pushed    bool   `json:"pushed"`
	MetaFile  string `json:"metaFile"`
}

// HealthResult is the /health inventory.
type HealthResult struct {
	Status        string   `json:"status"`
	Workspace     string   `json:"workspace"`
	CriticalFiles []string `json:"criticalFiles"`
	ProtectedDirs []string `json:"protectedDirectories"`
	BackupCount   int      `json:"backupCount"`
	Version       string   `json:"version"`
}

// BackupInfo is one row of the backup listing.
type BackupInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}
