package model

// SavedFormula 用户保存的调色配方
// swagger:model SavedFormula
type SavedFormula struct {
	UUIDBase
	Name        string  `gorm:"size:100;not null" json:"name"`
	Brand       string  `gorm:"size:100" json:"brand"`
	BaseLevel   int     `json:"baseLevel"`   // 起始色度 1-10
	TargetLevel int     `json:"targetLevel"` // 目标色度 1-10
	Developer   int     `json:"developer"`   // 双氧奶浓度 vol
	MixRatio    string  `gorm:"size:20" json:"mixRatio"`
	Tone        string  `gorm:"size:50" json:"tone"`
	Grams       float64 `json:"grams"`
	Notes       string  `gorm:"type:text" json:"notes"`
}

func (SavedFormula) TableName() string {
	return "saved_formulas"
}

// SolverEntry 色彩求解器的一次输入与结果
// swagger:model SolverEntry
type SolverEntry struct {
	UUIDBase
	StartLevel  int    `json:"startLevel"`
	TargetLevel int    `json:"targetLevel"`
	Undertone   string `gorm:"size:50" json:"undertone"`
	Result      string `gorm:"type:text" json:"result"`
}

func (SolverEntry) TableName() string {
	return "solver"
}
