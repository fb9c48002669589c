package domain

import (
	"errors"
	"time"
)

// User is the default application identity table. Deployments may point the
// service at their own table instead; see Model.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username  string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex"`
	Email     string    `json:"email" gorm:"type:varchar(254);not null;default:'';index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// Model names the user table and its email-bearing column.
type Model struct {
	Table      string
	EmailField string
}

var ErrUserNotFound = errors.New("user_not_found")
