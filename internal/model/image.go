package model

// Image 练习图片上传记录
// swagger:model Image
type Image struct {
	UUIDBase
	ObjectKey    string `gorm:"size:255;not null" json:"objectKey"`
	URL          string `gorm:"size:512;not null" json:"url"`
	ThumbnailURL string `gorm:"size:512" json:"thumbnailUrl"`
	ContentType  string `gorm:"size:100" json:"contentType"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Purpose      string `gorm:"size:50" json:"purpose"` // practice | formula
}

func (Image) TableName() string {
	return "images"
}
