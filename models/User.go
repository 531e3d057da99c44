package models

import "gorm.io/gorm"

// User is an operator account allowed to change the catalog and run production.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
}
