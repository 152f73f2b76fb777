package model

import "time"

// User 代表一个分析师账号。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password  string    `gorm:"size:128;not null" json:"-"`
	Role      string    `gorm:"size:16;not null;default:USER" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// SearchLog 是一次搜索的审计记录，在响应返回后异步落库。
type SearchLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"index;size:64" json:"userId"`
	SessionID     string    `gorm:"size:64" json:"sessionId"`
	Query         string    `gorm:"type:text;not null" json:"query"`
	EnhancedQuery string    `gorm:"type:text" json:"enhancedQuery"`
	Answer        string    `gorm:"type:text" json:"answer"`
	Confidence    string    `gorm:"size:8" json:"confidence"`
	ResultCount   int       `json:"resultCount"`
	LatencyMs     int64     `json:"latencyMs"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (SearchLog) TableName() string {
	return "search_logs"
}
