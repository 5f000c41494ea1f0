package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// gin.Context 中的 key
const (
	ContextUserKey    = "user"
	ContextProfileKey = "device_profile"
)

// 上传相关常量
const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"

	MaxImageSize   = 10 << 20
	ThumbnailWidth = 320
)

var (
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	AllowedImageMimeTypes  = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
)
