// Package visits records page visits after the privacy gate sequence has
// cleared them.
package visits

import (
	"time"
)

// MaxPageURLLength caps the stored page URL.
const MaxPageURLLength = 2048

// Visit is one recorded page view.
type Visit struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"index;size:64;not null"`
	IPHash          string `gorm:"index;size:64;not null"`
	PageURL         string `gorm:"index;size:2048;not null"`
	Referrer        string
	UserAgent       string
	Browser         string `gorm:"index"`
	DeviceType      string `gorm:"index"`
	Country         string `gorm:"index"`
	City            string
	IsUniqueVisitor bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index;not null"`
}
