package model

import "time"

// ProgressSnapshot 教程进度的持久化副本，Blob 为课程映射的 JSON
type ProgressSnapshot struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Blob      []byte    `gorm:"column:data;type:blob" json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ProgressSnapshot) TableName() string {
	return "progress_snapshots"
}
