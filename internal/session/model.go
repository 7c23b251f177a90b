package session

import (
	"time"

	"github.com/Skotchmaster/hostel_meals/internal/models"
)

// Session is one signed-in browser. ID is the sha256 of the cookie token,
// so a leaked table does not leak live cookies.
type Session struct {
	ID             string      `gorm:"primaryKey;size:64"`
	UID            string      `gorm:"index;not null"`
	Email          string      `gorm:"index;not null"`
	Name           string      `gorm:"not null;default:''"`
	Photo          string      `gorm:"not null;default:''"`
	Role           models.Role `gorm:"not null"`
	Tier           models.Tier `gorm:"not null"`
	IDToken        string      `gorm:"not null"`
	RefreshToken   string      `gorm:"not null;default:''"`
	TokenExpiresAt time.Time   `gorm:"not null"`
	ExpiresAt      time.Time   `gorm:"index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Session) Principal() models.Principal {
	return models.Principal{
		Email: s.Email,
		Name:  s.Name,
		Photo: s.Photo,
		Role:  s.Role,
		Tier:  s.Tier,
	}
}
