package model

import "time"

// Todo is a task item owned by exactly one user.
type Todo struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"size:1024"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
