package service

import (
	"color_academy_backend/internal/gateway"
	"color_academy_backend/internal/util"
	"color_academy_backend/pkg/logger"
	"color_academy_backend/pkg/monitoring"
	"context"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ImageService 练习图片上传：校验、生成缩略图、写入对象存储并登记到网关
type ImageService struct {
	Storage   *StorageService
	Gateway   gateway.Gateway
	TempDir   string
	Thumbnail func(src, dst string, width int) error
}

func NewImageService(storage *StorageService, gw gateway.Gateway) *ImageService {
	return &ImageService{
		Storage:   storage,
		Gateway:   gw,
		TempDir:   os.TempDir(),
		Thumbnail: util.GenerateImageThumbnail,
	}
}

func (s *ImageService) List(ctx context.Context, userID uint) ([]gateway.Record, error) {
	records, err := s.Gateway.Read(ctx, gateway.CollectionImages, gateway.Filter{"userId": userID})
	if err != nil {
		monitoring.GatewayErrors.WithLabelValues(gateway.CollectionImages, "read").Inc()
		return nil, err
	}
	return records, nil
}

// Upload 缩略图生成失败不影响上传
func (s *ImageService) Upload(ctx context.Context, userID uint, fh *multipart.FileHeader, purpose string) (gateway.Record, error) {
	if fh.Size > util.MaxImageSize {
		return nil, util.ErrFileTooLarge
	}
	if !util.HasAllowedExtension(fh.Filename, util.AllowedImageExtensions) {
		return nil, util.ErrUnsupportedFile
	}

	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	contentType, err := util.ValidateMimeType(src, util.AllowedImageMimeTypes)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.TempDir, "upload-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	key := ObjectKey(userID, ext)
	url, err := s.Storage.UploadFile(ctx, key, tmpPath, contentType)
	if err != nil {
		return nil, err
	}

	rec := gateway.Record{
		"userId":      userID,
		"objectKey":   key,
		"url":         url,
		"contentType": contentType,
		"size":        fh.Size,
		"purpose":     purpose,
	}

	if info, err := util.GetImageInfo(tmpPath); err == nil {
		rec["width"] = info.Width
		rec["height"] = info.Height
	}

	uploaded := []string{key}
	thumbPath := strings.TrimSuffix(tmpPath, filepath.Ext(tmpPath)) + "_thumb.jpg"
	if err := s.Thumbnail(tmpPath, thumbPath, util.ThumbnailWidth); err != nil {
		logger.Log.Warn("Thumbnail generation failed", zap.String("key", key), zap.Error(err))
	} else {
		defer os.Remove(thumbPath)
		thumbKey := strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
		if thumbURL, err := s.Storage.UploadFile(ctx, thumbKey, thumbPath, "image/jpeg"); err == nil {
			rec["thumbnailUrl"] = thumbURL
			uploaded = append(uploaded, thumbKey)
		} else {
			logger.Log.Warn("Thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
		}
	}

	ack, err := s.Gateway.Write(ctx, gateway.CollectionImages, rec)
	if err != nil {
		monitoring.GatewayErrors.WithLabelValues(gateway.CollectionImages, "write").Inc()
		// 记录写入失败时清理已上传的对象，包括缩略图
		for _, k := range uploaded {
			if delErr := s.Storage.Delete(ctx, k); delErr != nil {
				logger.Log.Warn("Failed to remove orphaned upload", zap.String("key", k), zap.Error(delErr))
			}
		}
		return nil, err
	}
	rec["id"] = ack.ID
	return rec, nil
}
