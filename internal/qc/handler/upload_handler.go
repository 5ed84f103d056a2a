package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitepulse/siteqc/internal/storage"
)

const maxPhotoSize = 20 << 20 // 20MB

// UploadHandler 现场照片上传处理器
type UploadHandler struct {
	store storage.Uploader
}

// NewUploadHandler 创建上传处理器，store为nil时上传接口返回503
func NewUploadHandler(store storage.Uploader) *UploadHandler {
	return &UploadHandler{store: store}
}

// UploadPhoto POST /uploads/photos
func (h *UploadHandler) UploadPhoto(c *gin.Context) {
	if h.store == nil {
		Error(c, 50300, "照片存储未配置")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	if file.Size > maxPhotoSize {
		BadRequest(c, "照片不能超过20MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败")
		return
	}
	defer src.Close()

	objectName := storage.ObjectName("photos", file.Filename)
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := h.store.Upload(c.Request.Context(), objectName, src, file.Size, contentType)
	if err != nil {
		InternalError(c, "照片上传失败: "+err.Error())
		return
	}

	url, err := h.store.PresignedGetURL(c.Request.Context(), stored, 24*time.Hour)
	if err != nil {
		// 对象已入库，链接生成失败时只返回路径
		url = stored
	}
	Created(c, gin.H{
		"object_name": stored,
		"url":         url,
	})
}
