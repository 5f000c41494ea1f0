package model

import (
	"time"
)

type UserRole string

const (
	Learner    UserRole = "learner"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// 账号来源
const (
	ProviderLocal = "local"
	ProviderOAuth = "oauth"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:100" json:"-"`
	Role      UserRole  `gorm:"size:20;default:'learner'" json:"role"`
	Provider  string    `gorm:"size:20;default:'local'" json:"provider"`
	Subject   string    `gorm:"size:191;index" json:"-"` // 外部认证服务的用户标识
	Avatar    string    `gorm:"size:255" json:"avatar"`
	LastLogin time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
