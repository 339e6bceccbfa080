package config

import (
	"gorm.io/gorm"

	"github.com/mrbooking/backend/internal/models"
)

var defaultPermissions = []models.Permission{
	{Code: "user:change_password", Description: "user - change own password"},
	{Code: "user:view_meeting_rooms", Description: "user - list meeting rooms"},
	{Code: "user:book_meeting_room", Description: "user - book a meeting room"},
	{Code: "user:view_booking_history", Description: "user - booking history"},
	{Code: "user:edit_profile", Description: "user - edit own profile"},
	{Code: "admin:manage_bookings", Description: "admin - manage bookings"},
	{Code: "admin:manage_meeting_rooms", Description: "admin - manage meeting rooms"},
	{Code: "admin:add_edit_meeting_rooms", Description: "admin - add/edit meeting rooms"},
	{Code: "admin:manage_users", Description: "admin - manage users"},
	{Code: "admin:view_statistics", Description: "admin - statistics"},
	{Code: "admin:edit_information", Description: "admin - edit information"},
	{Code: "admin:change_password", Description: "admin - change passwords"},
}

// SeedRBAC inserts the default roles and permissions if they are not
// present yet. New registrations get the "user" role.
func SeedRBAC(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		perms := make([]models.Permission, len(defaultPermissions))
		for i, p := range defaultPermissions {
			perm := p
			if err := tx.Where("code = ?", perm.Code).FirstOrCreate(&perm).Error; err != nil {
				return err
			}
			perms[i] = perm
		}

		var userPerms, adminPerms []models.Permission
		for _, p := range perms {
			if len(p.Code) > 5 && p.Code[:5] == "user:" {
				userPerms = append(userPerms, p)
			} else {
				adminPerms = append(adminPerms, p)
			}
		}

		userRole := models.Role{Name: "user", Description: "regular user"}
		if err := tx.Where("name = ?", userRole.Name).FirstOrCreate(&userRole).Error; err != nil {
			return err
		}
		if err := tx.Model(&userRole).Association("Permissions").Replace(userPerms); err != nil {
			return err
		}

		adminRole := models.Role{Name: "admin", Description: "administrator"}
		if err := tx.Where("name = ?", adminRole.Name).FirstOrCreate(&adminRole).Error; err != nil {
			return err
		}
		return tx.Model(&adminRole).Association("Permissions").Replace(adminPerms)
	})
}
