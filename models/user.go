package models

import (
	"strings"
	"time"
)

// User represents a Telegram user with a balance in minor units
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	Balance    int64     `db:"balance"`
	IsAdmin    bool      `db:"is_admin"`
	IsLocked   bool      `db:"is_locked"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// TelegramProfile carries the identity fields sent by the web client
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// DisplayName returns the name shown to other players
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return "Player"
}
