package handler

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/packshot/config"
	"github.com/chaos-io/packshot/pipeline"
	"github.com/chaos-io/packshot/pipeline/rembg"
	"github.com/chaos-io/packshot/util"
)

type ProcessHandler struct {
	cfg        *config.Config
	remover    rembg.Remover
	configPath string

	mu       sync.RWMutex
	defaults pipeline.Config
}

// NewProcessHandler configPath 是配置更新要写回的文件，与启动加载的保持一致
func NewProcessHandler(cfg *config.Config, remover rembg.Remover, configPath string) *ProcessHandler {
	return &ProcessHandler{
		cfg:        cfg,
		remover:    remover,
		configPath: configPath,
		defaults:   cfg.Processing,
	}
}

// Health 健康检查
func (h *ProcessHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProcessSingle 处理单张上传图片，返回编码后的图片字节
func (h *ProcessHandler) ProcessSingle(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file exceeds size limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}
	if !h.allowedType(file) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	cfg, err := h.requestConfig(c.PostForm("config"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := decodeUpload(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image: " + err.Error()})
		return
	}

	result, err := pipeline.Process(c.Request.Context(), img, cfg, h.remover)
	if err != nil {
		h.respondProcessError(c, err)
		return
	}

	writeDiagnostics(c, result.Diagnostics)
	name := "processed_" + strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename)) + "." + string(result.Format)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentTypeFor(result.Format), result.Data)
}

// ProcessBatch 批量处理，结果打包成 ZIP 返回
func (h *ProcessHandler) ProcessBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images provided"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files selected"})
		return
	}

	cfg, err := h.requestConfig(c.PostForm("config"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	processed, failed := 0, 0
	for _, file := range files {
		if file.Size > h.cfg.Upload.MaxSize || !h.allowedType(file) {
			failed++
			continue
		}
		img, err := decodeUpload(file)
		if err != nil {
			util.Logger.Warn("skipping unreadable upload",
				zap.String("file", file.Filename), zap.Error(err))
			failed++
			continue
		}
		result, err := pipeline.Process(c.Request.Context(), img, cfg, h.remover)
		if err != nil {
			util.Logger.Warn("failed to process upload",
				zap.String("file", file.Filename), zap.Error(err))
			failed++
			continue
		}
		entry := zipEntryName(file.Filename, result.Format)
		w, err := zw.Create(entry)
		if err == nil {
			_, err = w.Write(result.Data)
		}
		if err != nil {
			failed++
			continue
		}
		processed++
	}
	if err := zw.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}
	if processed == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid files uploaded"})
		return
	}

	c.Header("X-Packshot-Processed", strconv.Itoa(processed))
	c.Header("X-Packshot-Failed", strconv.Itoa(failed))
	c.Header("Content-Disposition", `attachment; filename="processed_images.zip"`)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

type base64Request struct {
	Image  string              `json:"image"`
	Config *pipeline.Overrides `json:"config"`
}

// ProcessBase64 处理 base64 编码的图片，结果同样以 base64 返回
func (h *ProcessHandler) ProcessBase64(c *gin.Context) {
	var req base64Request
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no base64 image provided"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed base64 payload"})
		return
	}

	cfg := h.base()
	if req.Config != nil {
		cfg = pipeline.Merge(cfg, *req.Config)
	}

	img, _, err := util.DecodeImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image: " + err.Error()})
		return
	}

	result, err := pipeline.Process(c.Request.Context(), img, cfg, h.remover)
	if err != nil {
		h.respondProcessError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"processed_image": base64.StdEncoding.EncodeToString(result.Data),
		"format":          contentTypeFor(result.Format),
		"diagnostics":     result.Diagnostics,
	})
}

// GetConfig 返回当前的处理默认值
func (h *ProcessHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.base())
}

// UpdateConfig 更新处理默认值并写回配置文件
func (h *ProcessHandler) UpdateConfig(c *gin.Context) {
	var o pipeline.Overrides
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no configuration provided"})
		return
	}

	merged := pipeline.Merge(h.base(), o)
	if err := merged.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.defaults = merged
	h.cfg.Processing = merged
	snapshot := *h.cfg
	h.mu.Unlock()

	if err := config.Save(&snapshot, h.configPath); err != nil {
		util.Logger.Warn("failed to persist config", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "configuration updated successfully"})
}

// allowedType 按配置的 MIME 白名单过滤上传，空白名单不限制
func (h *ProcessHandler) allowedType(file *multipart.FileHeader) bool {
	types := h.cfg.Upload.AllowedTypes
	if len(types) == 0 {
		return true
	}
	ct := file.Header.Get("Content-Type")
	for _, t := range types {
		if strings.EqualFold(t, ct) {
			return true
		}
	}
	return false
}

func (h *ProcessHandler) base() pipeline.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaults
}

// requestConfig 默认值 + 请求级覆盖项的纯合并
func (h *ProcessHandler) requestConfig(raw string) (pipeline.Config, error) {
	cfg := h.base()
	if raw == "" {
		return cfg, nil
	}
	var o pipeline.Overrides
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return cfg, fmt.Errorf("malformed config overrides: %w", err)
	}
	return pipeline.Merge(cfg, o), nil
}

func (h *ProcessHandler) respondProcessError(c *gin.Context, err error) {
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	util.Logger.Error("failed to process image", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process image"})
}

func decodeUpload(file *multipart.FileHeader) (img image.Image, err error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	img, _, err = util.DecodeImage(data)
	return img, err
}

func writeDiagnostics(c *gin.Context, d pipeline.Diagnostics) {
	c.Header("X-Packshot-Product-Found", strconv.FormatBool(d.ProductFound))
	c.Header("X-Packshot-Quality", strconv.Itoa(d.Quality))
	c.Header("X-Packshot-Size-Target-Met", strconv.FormatBool(d.SizeTargetMet))
	c.Header("X-Packshot-AI-Applied", strconv.FormatBool(d.AIApplied))
	c.Header("X-Packshot-AI-Fallback", strconv.FormatBool(d.AIFallback))
	c.Header("X-Packshot-Upscaled", strconv.FormatBool(d.Upscaled))
}

func contentTypeFor(f pipeline.Format) string {
	switch f {
	case pipeline.FormatPNG:
		return "image/png"
	case pipeline.FormatWEBP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func zipEntryName(original string, f pipeline.Format) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" {
		base = ksuid.New().String()
	}
	return "processed_" + base + "." + string(f)
}
