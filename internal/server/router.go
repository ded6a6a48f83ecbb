package server

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/devboxd/internal/broadcast"
	"github.com/loykin/devboxd/internal/fsops"
	"github.com/loykin/devboxd/internal/gitops"
	"github.com/loykin/devboxd/internal/metrics"
	"github.com/loykin/devboxd/internal/procmgr"
)

// Router provides embeddable HTTP handlers for the devbox agent.
// Endpoints (under basePath):
//   POST /process/exec              body: ExecSpec JSON -> {processId, pid, processStatus}
//   POST /process/exec-sync         body: ExecSpec JSON -> buffered result
//   POST /process/exec-sync-stream  body: ExecSpec JSON -> SSE events
//   GET  /process/:id/status
//   POST /process/:id/kill          query: signal=
//   GET  /processes
//   GET  /process/:id/logs          query: stream=true for SSE tail
//   GET  /ws/logs                   WebSocket log fan-out (when a hub is mounted)
//   POST /files/...                 workspace file operations (when mounted)
//   POST /git/...                   git operations (when mounted)
//   GET  /healthz
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	mgr         *procmgr.Manager
	files       *fsops.Service
	git         *gitops.Service
	hub         *broadcast.Hub
	basePath    string
	withMetrics bool
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/process/exec etc.
func NewRouter(mgr *procmgr.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// MountFiles enables the workspace file endpoints.
func (r *Router) MountFiles(svc *fsops.Service) { r.files = svc }

// MountGit enables the git endpoints.
func (r *Router) MountGit(svc *gitops.Service) { r.git = svc }

// MountHub enables the WebSocket log fan-out endpoint.
func (r *Router) MountHub(h *broadcast.Hub) { r.hub = h }

// MountMetrics serves prometheus metrics at /metrics (outside basePath).
func (r *Router) MountMetrics() { r.withMetrics = true }

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/process/exec", r.handleExec)
	group.POST("/process/exec-sync", r.handleExecSync)
	group.POST("/process/exec-sync-stream", r.handleExecSyncStream)
	group.GET("/process/:id/status", r.handleStatus)
	group.POST("/process/:id/kill", r.handleKill)
	group.GET("/process/:id/logs", r.handleLogs)
	group.GET("/processes", r.handleList)
	group.GET("/healthz", r.handleHealthz)
	if r.hub != nil {
		group.GET("/ws/logs", gin.WrapH(r.hub))
	}
	if r.files != nil {
		group.POST("/files/read", r.handleFileRead)
		group.POST("/files/write", r.handleFileWrite)
		group.POST("/files/list", r.handleFileList)
		group.POST("/files/move", r.handleFileMove)
		group.POST("/files/delete", r.handleFileDelete)
	}
	if r.git != nil {
		group.POST("/git/clone", r.handleGitClone)
		group.POST("/git/pull", r.handleGitPull)
		group.POST("/git/checkout", r.handleGitCheckout)
		group.GET("/git/status", r.handleGitStatus)
		group.GET("/git/branch", r.handleGitBranch)
	}
	if r.withMetrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// WriteTimeout stays zero because the SSE endpoints hold responses open
// indefinitely.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// statusFor maps manager errors onto the HTTP error taxonomy.
func statusFor(err error) int {
	var te *procmgr.TimeoutError
	var se *procmgr.SpawnError
	switch {
	case errors.Is(err, procmgr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, procmgr.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, procmgr.ErrEmptyCommand), errors.Is(err, procmgr.ErrBadSignal):
		return http.StatusBadRequest
	case errors.As(err, &te):
		return http.StatusRequestTimeout
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) bindExecSpec(c *gin.Context) (procmgr.ExecSpec, bool) {
	var spec procmgr.ExecSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return spec, false
	}
	if !isSafeAbsPath(spec.Cwd) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid cwd: must be absolute path without traversal"})
		return spec, false
	}
	return spec, true
}

func (r *Router) handleExec(c *gin.Context) {
	spec, ok := r.bindExecSpec(c)
	if !ok {
		return
	}
	launched, err := r.mgr.Exec(spec)
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, launched)
}

// execSyncResp carries the buffered result plus the operation error, so
// timeout and spawn-failure responses still expose partial data.
type execSyncResp struct {
	procmgr.SyncResult
	Error string `json:"error,omitempty"`
}

func (r *Router) handleExecSync(c *gin.Context) {
	spec, ok := r.bindExecSpec(c)
	if !ok {
		return
	}
	res, err := r.mgr.ExecSync(spec)
	if err != nil {
		if errors.Is(err, procmgr.ErrEmptyCommand) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, statusFor(err), execSyncResp{SyncResult: res, Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, execSyncResp{SyncResult: res})
}

func (r *Router) handleStatus(c *gin.Context) {
	info, err := r.mgr.Status(c.Param("id"))
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (r *Router) handleKill(c *gin.Context) {
	if err := r.mgr.Kill(c.Param("id"), c.Query("signal")); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type listResp struct {
	Processes []procmgr.Snapshot `json:"processes"`
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, listResp{Processes: r.mgr.List()})
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// --- File handlers ---

type filePathReq struct {
	Path string `json:"path"`
}

type fileWriteReq struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type fileMoveReq struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func fileStatusFor(err error) int {
	switch {
	case errors.Is(err, fsops.ErrPathEscape):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) handleFileRead(c *gin.Context) {
	var req filePathReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	data, err := r.files.Read(req.Path)
	if err != nil {
		writeJSON(c, fileStatusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"path": req.Path, "content": string(data)})
}

func (r *Router) handleFileWrite(c *gin.Context) {
	var req fileWriteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.files.Write(req.Path, []byte(req.Content)); err != nil {
		writeJSON(c, fileStatusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleFileList(c *gin.Context) {
	var req filePathReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	entries, err := r.files.List(req.Path)
	if err != nil {
		writeJSON(c, fileStatusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"path": req.Path, "entries": entries})
}

func (r *Router) handleFileMove(c *gin.Context) {
	var req fileMoveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.files.Move(req.Source, req.Target); err != nil {
		writeJSON(c, fileStatusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleFileDelete(c *gin.Context) {
	var req filePathReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.files.Delete(req.Path); err != nil {
		writeJSON(c, fileStatusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// --- Git handlers ---

type gitCloneReq struct {
	URL string `json:"url"`
	Dir string `json:"dir,omitempty"`
}

type gitCheckoutReq struct {
	Dir string `json:"dir,omitempty"`
	Ref string `json:"ref"`
}

type gitDirReq struct {
	Dir string `json:"dir,omitempty"`
}

func (r *Router) handleGitClone(c *gin.Context) {
	var req gitCloneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.git.Clone(req.URL, req.Dir); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGitPull(c *gin.Context) {
	var req gitDirReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.git.Pull(req.Dir); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGitCheckout(c *gin.Context) {
	var req gitCheckoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.git.Checkout(req.Dir, req.Ref); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGitStatus(c *gin.Context) {
	lines, err := r.git.Status(c.Query("dir"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"changes": lines})
}

func (r *Router) handleGitBranch(c *gin.Context) {
	branch, err := r.git.Branch(c.Query("dir"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"branch": branch})
}
