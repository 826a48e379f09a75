package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/models"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/service"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/storage"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/upload"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/worker"
)

// Transcriber is the boundary the HTTP layer talks to.
type Transcriber interface {
	UploadChunk(sessionID string, index, total int, payload io.Reader) (upload.Ack, error)
	FinalizeAndTranscribeSync(ctx context.Context, sessionID, filename string, opts service.Options) (string, string, error)
	FinalizeAndTranscribeAsync(sessionID, filename string, opts service.Options) (string, error)
	SubmitFileSync(ctx context.Context, path, filename string, opts service.Options) (string, string, error)
	SubmitFileAsync(path, filename string, opts service.Options) (string, error)
	JobStatus(id string) (models.Job, error)
	FetchResult(ctx context.Context, id string) (string, error)
	ResultFile(ctx context.Context, id string) (string, string, error)
	RecentTranscriptions(ctx context.Context, limit int) ([]models.Transcription, error)
}

// Handler wires HTTP routes to the transcription service.
type Handler struct {
	service        Transcriber
	uploadDir      string
	maxUploadBytes int64
}

const defaultMaxUploadBytes = 512 << 20 // 512 MB

// NewHandler constructs a Handler instance.
func NewHandler(svc Transcriber, uploadDir string, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		service:        svc,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.index)
	router.POST("/upload-chunk", h.uploadChunk)
	router.POST("/finalize", h.finalizeSync)
	router.POST("/finalize-async", h.finalizeAsync)
	router.POST("/transcribe", h.transcribeSync)
	router.POST("/transcribe-async", h.transcribeAsync)
	router.GET("/status/:job_id", h.jobStatus)
	router.GET("/download/:transcription_id", h.download)
	router.GET("/transcriptions", h.listTranscriptions)
}

func (h *Handler) uploadChunk(c *gin.Context) {
	index, err := strconv.Atoi(c.PostForm("chunk_index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk_index"})
		return
	}
	total, err := strconv.Atoi(c.PostForm("total_chunks"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_chunks"})
		return
	}
	sessionID := strings.TrimSpace(c.PostForm("session_id"))
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	file, err := c.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open chunk failed"})
		return
	}
	defer f.Close()

	ack, err := h.service.UploadChunk(sessionID, index, total, f)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": ack.SessionID,
		"received":   ack.Received,
		"total":      ack.Total,
	})
}

type finalizeRequest struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	Translate bool   `json:"translate"`
	Device    string `json:"device"`
}

func (h *Handler) finalizeSync(c *gin.Context) {
	req, ok := h.bindFinalize(c)
	if !ok {
		return
	}
	text, id, err := h.service.FinalizeAndTranscribeSync(c.Request.Context(), req.SessionID, req.Filename, req.options())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": text, "id": id})
}

func (h *Handler) finalizeAsync(c *gin.Context) {
	req, ok := h.bindFinalize(c)
	if !ok {
		return
	}
	jobID, err := h.service.FinalizeAndTranscribeAsync(req.SessionID, req.Filename, req.options())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (h *Handler) bindFinalize(c *gin.Context) (finalizeRequest, bool) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return req, false
	}
	if req.Filename == "" {
		req.Filename = req.SessionID
	}
	return req, true
}

func (req finalizeRequest) options() service.Options {
	return service.Options{Language: req.Language, Translate: req.Translate, Device: req.Device}
}

func (h *Handler) transcribeSync(c *gin.Context) {
	path, filename, opts, ok := h.saveUpload(c)
	if !ok {
		return
	}
	text, id, err := h.service.SubmitFileSync(c.Request.Context(), path, filename, opts)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": text, "id": id})
}

func (h *Handler) transcribeAsync(c *gin.Context) {
	path, filename, opts, ok := h.saveUpload(c)
	if !ok {
		return
	}
	jobID, err := h.service.SubmitFileAsync(path, filename, opts)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

var allowedContentTypes = []string{
	"audio/",
	"video/",
	"application/octet-stream",
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

// saveUpload parses a whole-file submission and stores it under the upload
// dir with a uuid prefix so concurrent uploads of the same name cannot
// collide.
func (h *Handler) saveUpload(c *gin.Context) (string, string, service.Options, bool) {
	opts := service.Options{
		Language:  c.DefaultPostForm("language", "auto"),
		Translate: c.PostForm("translate") == "true",
		Device:    c.PostForm("device"),
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", "", opts, false
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return "", "", opts, false
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return "", "", opts, false
	}
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	_ = f.Close()
	contentType := http.DetectContentType(buf[:n])
	if !isAllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type %s", contentType)})
		return "", "", opts, false
	}
	filename := filepath.Base(file.Filename)
	destPath := filepath.Join(h.uploadDir, uuid.New().String()+"_"+filename)
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return "", "", opts, false
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return "", "", opts, false
	}
	return destPath, filename, opts, true
}

func (h *Handler) jobStatus(c *gin.Context) {
	job, err := h.service.JobStatus(c.Param("job_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	reply := gin.H{
		"job_id":   job.ID,
		"filename": job.Filename,
		"status":   job.Status,
	}
	switch job.Status {
	case models.StatusCompleted:
		reply["transcription"] = job.Text
		reply["id"] = job.TranscriptionID
	case models.StatusError:
		reply["error"] = job.Error
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) download(c *gin.Context) {
	path, filename, err := h.service.ResultFile(c.Request.Context(), c.Param("transcription_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.FileAttachment(path, filename+".txt")
}

func (h *Handler) listTranscriptions(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	recs, err := h.service.RecentTranscriptions(c.Request.Context(), limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if recs == nil {
		recs = make([]models.Transcription, 0)
	}
	c.JSON(http.StatusOK, gin.H{"transcriptions": recs})
}

// renderError maps sentinel errors onto HTTP status codes: caller mistakes
// become 4xx, collaborator and internal failures become 5xx.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, upload.ErrProtocolViolation), errors.Is(err, upload.ErrIncompleteUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrSessionNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, storage.ErrResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
