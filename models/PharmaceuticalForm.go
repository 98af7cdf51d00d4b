package models

import "time"

// PharmaceuticalForm is the physical presentation of a finished product
// (capsule, cream, paste, chewable treat).
type PharmaceuticalForm struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
