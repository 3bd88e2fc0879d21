package domain

import "time"

// DefaultTaskView is the task list layout new accounts start with.
const DefaultTaskView = "minimalist"

type User struct {
	ID           string
	Email        string // unique, lower-cased
	Username     string // optional display name
	PasswordHash string // argon2id PHC string
	TaskView     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
