package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"unique;not null"          json:"name"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	NickName     string    `json:"nickName"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	Avatar       string    `json:"avatar"`
	PhoneNumber  string    `json:"phoneNumber"`
	IsFrozen     bool      `gorm:"default:false"            json:"isFrozen"`
	IsAdmin      bool      `gorm:"default:false"            json:"isAdmin"`
	RoleID       uint      `gorm:"index;not null"           json:"-"`
	Role         Role      `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Role struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"unique;not null"          json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions"`
}

type Permission struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string `gorm:"unique;not null"          json:"code"`
	Description string `json:"description"`
}

type MeetingRoom struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"unique;not null"          json:"name"`
	Location    string    `gorm:"not null"                 json:"location"`
	Capacity    int       `gorm:"not null"                 json:"capacity"`
	Equipment   string    `json:"equipment"`
	Description string    `json:"description"`
	IsBooked    bool      `gorm:"default:false"            json:"isBooked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PermissionCodes flattens the role's permission associations into the
// list of capability codes embedded in access tokens.
func (u *User) PermissionCodes() []string {
	codes := make([]string, 0, len(u.Role.Permissions))
	for _, p := range u.Role.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}
