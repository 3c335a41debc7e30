// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/service"
	"pet-match-go/pkg/embedding"
	"pet-match-go/pkg/log"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MatchHandler 负责图片匹配与服务状态相关的 API 请求。
type MatchHandler struct {
	matchService service.MatchService
	holder       *gallery.Holder
	model        string
	defaultTopK  int
	maxTopK      int
	maxUpload    int64
}

// NewMatchHandler 创建一个新的 MatchHandler 实例。maxUploadMB 为 0 时不限制上传大小。
func NewMatchHandler(matchService service.MatchService, holder *gallery.Holder, model string, defaultTopK, maxTopK, maxUploadMB int) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		holder:       holder,
		model:        model,
		defaultTopK:  defaultTopK,
		maxTopK:      maxTopK,
		maxUpload:    int64(maxUploadMB) << 20,
	}
}

// 服务名称与版本，出现在 GET / 的返回中。
const (
	serviceName    = "Pet-a-Likey API"
	serviceVersion = "1.0.0"
)

// Info 返回服务信息与可用的接口列表。
func (h *MatchHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": gin.H{
			"POST /api/match":           "Upload a photo to find matching dogs",
			"GET /dog-images/:id":       "Get a dog image by ID",
			"GET /health":               "Health check",
			"POST /api/gallery/refresh": "Rebuild the gallery index",
		},
	})
}

// Health 返回健康状态以及图库索引是否就绪。
func (h *MatchHandler) Health(c *gin.Context) {
	idx, ready := h.holder.Load()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"ready":   ready,
		"indexed": idx.Len(),
		"model":   h.model,
	})
}

// Match 处理图片匹配请求。上传内容只保存在内存中，不落盘。
func (h *MatchHandler) Match(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warnf("[MatchHandler] 上传图片超过大小限制: %d bytes", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
			return
		}
		log.Warnf("[MatchHandler] 请求中没有图片: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
		return
	}

	image, err := readUpload(fileHeader)
	if err != nil {
		log.Errorf("[MatchHandler] 读取上传图片失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
		return
	}

	topK := h.parseTopK(c)
	log.Infof("[MatchHandler] 收到匹配请求, 文件: %s, 大小: %d, topK: %d", fileHeader.Filename, len(image), topK)

	matches, err := h.matchService.Match(c.Request.Context(), image, topK)
	if err != nil {
		status, message := matchErrorStatus(err)
		log.Errorf("[MatchHandler] 匹配失败, status: %d, error: %v", status, err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// parseTopK 读取 query 或表单中的 topK，非法值使用默认值，超过上限时截断。
func (h *MatchHandler) parseTopK(c *gin.Context) int {
	raw := c.Query("topK")
	if raw == "" {
		raw = c.PostForm("topK")
	}
	topK, err := strconv.Atoi(raw)
	if err != nil || topK <= 0 {
		topK = h.defaultTopK
	}
	if h.maxTopK > 0 && topK > h.maxTopK {
		topK = h.maxTopK
	}
	return topK
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// matchErrorStatus 把业务错误映射为 HTTP 状态码与返回信息。
func matchErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoQueryImage):
		return http.StatusBadRequest, "No image uploaded"
	case errors.Is(err, embedding.ErrDecode):
		return http.StatusBadRequest, "Invalid image"
	case errors.Is(err, service.ErrIndexNotReady):
		return http.StatusServiceUnavailable, "Gallery index is not ready"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Match timed out"
	default:
		return http.StatusInternalServerError, "Failed to compute match"
	}
}
