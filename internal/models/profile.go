package models

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

const (
	RoleStudent     = "student"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
)
