package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/service"
	"pet-match-go/pkg/log"
	"pet-match-go/pkg/storage"
	"time"

	"github.com/gin-gonic/gin"
)

// GalleryHandler 负责图库图片访问与索引刷新。
type GalleryHandler struct {
	refreshService service.RefreshService
	source         gallery.Source
	urlExpiry      time.Duration
}

// NewGalleryHandler 创建一个新的 GalleryHandler 实例。
func NewGalleryHandler(refreshService service.RefreshService, source gallery.Source, urlExpiry time.Duration) *GalleryHandler {
	return &GalleryHandler{
		refreshService: refreshService,
		source:         source,
		urlExpiry:      urlExpiry,
	}
}

// Image 返回图库中的一张图片。本地目录直接返回文件，对象存储重定向到预签名 URL。
func (h *GalleryHandler) Image(c *gin.Context) {
	id := c.Param("id")
	if id != filepath.Base(id) || !gallery.IsImageFile(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	switch src := h.source.(type) {
	case *gallery.DirSource:
		path := filepath.Join(src.Dir(), id)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.File(path)
	case *gallery.MinIOSource:
		url, err := storage.GetPresignedURL(c.Request.Context(), src.Bucket(), src.ObjectName(id), h.urlExpiry)
		if err != nil {
			log.Errorf("[GalleryHandler] 生成预签名 URL 失败, id: %s, error: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load image"})
			return
		}
		c.Redirect(http.StatusFound, url)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
	}
}

// Refresh 触发一次图库索引重建，立即返回请求 ID。
func (h *GalleryHandler) Refresh(c *gin.Context) {
	reason := c.DefaultQuery("reason", "manual")
	requestID, err := h.refreshService.RequestRefresh(c.Request.Context(), reason)
	if err != nil {
		log.Errorf("[GalleryHandler] 提交刷新请求失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request refresh"})
		return
	}
	log.Infof("[GalleryHandler] 已受理刷新请求, requestId: %s, reason: %s", requestID, reason)
	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID, "status": "accepted"})
}
