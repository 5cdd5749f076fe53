package web

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
	"github.com/cjeanneret/CamGo/internal/logic/permission"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/media"
)

// maxBodyBytes bounds request bodies; the only body is a permission answer.
const maxBodyBytes = 4 << 10

// Session is the part of the capture session the HTTP surface drives.
type Session interface {
	Start(ctx context.Context) error
	OnCaptureToggle(ctx context.Context) error
	OnPhotoRequest(ctx context.Context) error
	OnFlipLens(ctx context.Context) error
	OnTorchToggle(ctx context.Context) error
	OnPermissionResult(ctx context.Context, kind permission.Kind, granted bool) error
	Snapshot() session.Status
}

// Prompter answers open permission prompts, e.g. permission.MemoryPlatform.
type Prompter interface {
	Answer(kind permission.Kind, granted bool) bool
	Prompts() []permission.Kind
}

// Library resolves committed media entries.
type Library interface {
	Lookup(uri string) (media.Info, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Session     Session
	// Prompter is optional. Without it, permission answers go straight to
	// the session.
	Prompter Prompter
	Library  Library
	// Timeout bounds how long a request waits for the session to accept it.
	Timeout  time.Duration
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If sess is nil, session routes return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, sess Session, prompter Prompter, library Library, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Session:     sess,
		Prompter:    prompter,
		Library:     library,
		Timeout:     5 * time.Second,
		staticFS:    staticFS,
	}
}

type permissionRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// Register attaches every route to r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.ServeIndex)
	r.GET("/healthz", h.HandleHealth)
	r.GET("/status", h.HandleStatus)
	r.GET("/status/stream", h.HandleStatusStream)
	r.GET("/thumbnail", h.HandleThumbnail)
	r.GET("/permissions/pending", h.HandlePendingPermissions)

	r.POST("/session/start", h.action("start", func(s Session, ctx context.Context) error { return s.Start(ctx) }))
	r.POST("/capture/toggle", h.action("capture toggle", func(s Session, ctx context.Context) error { return s.OnCaptureToggle(ctx) }))
	r.POST("/photo", h.action("photo", func(s Session, ctx context.Context) error { return s.OnPhotoRequest(ctx) }))
	r.POST("/lens/flip", h.action("lens flip", func(s Session, ctx context.Context) error { return s.OnFlipLens(ctx) }))
	r.POST("/torch/toggle", h.action("torch toggle", func(s Session, ctx context.Context) error { return s.OnTorchToggle(ctx) }))
	r.POST("/permissions/:kind", h.HandlePermissionAnswer)

	if h.staticFS != nil {
		r.StaticFS("/static", http.FS(h.staticFS))
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(c *gin.Context) {
	if h.staticFS == nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// HandleHealth reports liveness, and whether the session is still open.
func (h *Handlers) HandleHealth(c *gin.Context) {
	if h.Session == nil || h.Session.Snapshot().Closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "closed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleStatus returns the session snapshot as JSON.
func (h *Handlers) HandleStatus(c *gin.Context) {
	if h.Session == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "session not configured"})
		return
	}
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

// action wraps a session entry point as a POST handler. A 202 means the
// session accepted the gesture; outcomes arrive on the status stream.
func (h *Handlers) action(name string, run func(Session, context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Session == nil {
			c.JSON(http.StatusServiceUnavailable, errorBody{Error: "session not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		if err := run(h.Session, ctx); err != nil {
			debug.Warn("web: %s: %v", name, err)
			c.JSON(statusFor(err), errorBody{Error: err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "action": name})
	}
}

// HandlePermissionAnswer handles POST /permissions/:kind with {"granted": bool}.
func (h *Handlers) HandlePermissionAnswer(c *gin.Context) {
	kind, err := permission.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "body must be {\"granted\": true|false}"})
		return
	}

	if h.Prompter != nil {
		if !h.Prompter.Answer(kind, *req.Granted) {
			c.JSON(http.StatusConflict, errorBody{Error: "no open prompt for " + kind.String()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "answered", "kind": kind.String()})
		return
	}
	if h.Session == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "session not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
	defer cancel()
	if err := h.Session.OnPermissionResult(ctx, kind, *req.Granted); err != nil {
		c.JSON(statusFor(err), errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "answered", "kind": kind.String()})
}

// HandlePendingPermissions lists the permission kinds awaiting an answer.
func (h *Handlers) HandlePendingPermissions(c *gin.Context) {
	pending := []string{}
	switch {
	case h.Prompter != nil:
		for _, k := range h.Prompter.Prompts() {
			pending = append(pending, k.String())
		}
	case h.Session != nil:
		pending = append(pending, h.Session.Snapshot().Outstanding...)
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// HandleThumbnail serves the most recently saved photo.
func (h *Handlers) HandleThumbnail(c *gin.Context) {
	if h.Session == nil || h.Library == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "session not configured"})
		return
	}
	uri := h.Session.Snapshot().LastPhoto
	if uri == "" {
		c.JSON(http.StatusNotFound, errorBody{Error: session.MsgNoImage})
		return
	}
	info, err := h.Library.Lookup(uri)
	if errors.Is(err, media.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody{Error: session.MsgNoImage})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	c.Header("X-Media-URI", info.URI)
	c.Header("Content-Type", info.MimeType)
	c.File(info.FilePath)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(c *gin.Context) {
	w := c.Writer
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.WriteString(": connected\n\n")
	w.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.WriteString("data: " + msg + "\n\n")
			w.Flush()

		case <-ticker.C:
			w.WriteString(": heartbeat\n\n")
			w.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, camera.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
