// Package server exposes inspection, repair and codec operations over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/audio"
	"github.com/ankit-chaubey/id3-surgery/core/codec"
	"github.com/ankit-chaubey/id3-surgery/core/id3"
	"github.com/ankit-chaubey/id3-surgery/core/repair"
)

// Options wires a server to its collaborators. Codec may be nil.
type Options struct {
	Repairer       *repair.Repairer
	Codec          core.Codec
	Log            *zap.Logger
	AllowOrigins   []string
	MaxUploadBytes int64
}

type handler struct {
	repairer  *repair.Repairer
	codec     core.Codec
	log       *zap.Logger
	maxUpload int64
}

// New returns a router serving the /api/v1 endpoints.
func New(opts Options) *gin.Engine {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Repairer == nil {
		opts.Repairer = repair.New(opts.Log)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 256 << 20
	}
	h := &handler{
		repairer:  opts.Repairer,
		codec:     opts.Codec,
		log:       opts.Log,
		maxUpload: opts.MaxUploadBytes,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Log))

	config := cors.DefaultConfig()
	config.AllowOrigins = opts.AllowOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.ExposeHeaders = []string{"Content-Disposition", "X-Original-Encoding"}
	router.Use(cors.New(config))

	api := router.Group("/api/v1")
	{
		api.GET("/health", h.health)
		api.POST("/inspect", h.inspect)
		api.POST("/repair", h.repair)
		api.POST("/guess", h.guess)
		api.POST("/transcode", h.transcode)
		api.POST("/split", h.split)
	}
	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────────────────────────────────

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// upload reads the multipart "file" field. On failure it has already
// written the response.
func (h *handler) upload(c *gin.Context) (string, []byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, err)
			return "", nil, false
		}
		fail(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return "", nil, false
	}
	return fh.Filename, data, true
}

func (h *handler) inspect(c *gin.Context) {
	name, data, ok := h.upload(c)
	if !ok {
		return
	}
	resp := gin.H{"file": name, "reader": id3.Read(name, data, c.PostForm("folder"))}
	if m, err := audio.View(name, data); err == nil {
		resp["metadata"] = metadataFields(m)
	} else {
		resp["metadata"] = nil
		resp["metadataError"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func metadataFields(m *core.Metadata) gin.H {
	fields := make([]gin.H, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, gin.H{"key": f.Key, "value": f.Value, "category": f.Category})
	}
	return gin.H{"format": m.Format, "fields": fields}
}

func (h *handler) repair(c *gin.Context) {
	name, data, ok := h.upload(c)
	if !ok {
		return
	}
	src, err := core.ParseSource(c.PostForm("source"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	set := map[string]string{}
	for _, k := range []string{"title", "artist", "album"} {
		if v := c.PostForm(k); v != "" {
			set[k] = v
		}
	}

	res := h.repairer.Repair(c.Request.Context(), core.Input{
		Name:       name,
		Data:       data,
		FolderHint: c.PostForm("folder"),
		Source:     src,
		Set:        set,
	})
	if res.Err != nil {
		h.log.Warn("repair failed", zap.String("file", name), zap.Error(res.Err))
		fail(c, statusFor(res.Err, http.StatusUnprocessableEntity), res.Err)
		return
	}
	attach(c, res.Name)
	c.Header("X-Original-Encoding", string(res.Metadata.OriginalEncoding))
	c.Data(http.StatusOK, "audio/mpeg", res.Output)
}

func (h *handler) guess(c *gin.Context) {
	filename := c.PostForm("filename")
	if filename == "" {
		fail(c, http.StatusBadRequest, errors.New("filename is required"))
		return
	}
	g, err := h.repairer.Guess(c.Request.Context(), filename, c.PostForm("folder"))
	if err != nil {
		fail(c, statusFor(err, http.StatusBadGateway), err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *handler) transcode(c *gin.Context) {
	if h.codec == nil {
		fail(c, http.StatusServiceUnavailable, core.ErrNoCodec)
		return
	}
	name, data, ok := h.upload(c)
	if !ok {
		return
	}
	out, err := h.codec.Transcode(c.Request.Context(), name, data)
	if err != nil {
		fail(c, statusFor(err, http.StatusUnprocessableEntity), err)
		return
	}
	attach(c, name[:len(name)-len(filepath.Ext(name))]+".mp3")
	c.Data(http.StatusOK, "audio/mpeg", out)
}

func (h *handler) split(c *gin.Context) {
	if h.codec == nil {
		fail(c, http.StatusServiceUnavailable, core.ErrNoCodec)
		return
	}
	name, data, ok := h.upload(c)
	if !ok {
		return
	}

	var (
		segs []core.Segment
		err  error
	)
	switch {
	case c.PostForm("silence") == "true":
		segs, err = h.codec.SplitOnSilence(c.Request.Context(), name, data)
	case c.PostForm("at") != "":
		offsets, perr := codec.ParseOffsets(c.PostForm("at"))
		if perr != nil {
			fail(c, http.StatusBadRequest, perr)
			return
		}
		segs, err = h.codec.SplitAt(c.Request.Context(), name, data, offsets)
	default:
		fail(c, http.StatusBadRequest, errors.New("either at or silence=true is required"))
		return
	}
	if err != nil {
		fail(c, statusFor(err, http.StatusUnprocessableEntity), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segs})
}

func attach(c *gin.Context, name string) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(name)}))
}

func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, core.ErrNoOracle), errors.Is(err, core.ErrNoCodec):
		return http.StatusServiceUnavailable
	case errors.Is(err, codec.ErrBadOffsets), errors.Is(err, repair.ErrUnknownField):
		return http.StatusBadRequest
	}
	return fallback
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
