// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns used by the SQL repositories.
package schema

// UserProfileTable represents the 'users.profile' table
type UserProfileTable struct {
	Table      string
	ID         string
	Name       string
	Gender     string
	Mobile     string
	AvatarURL  string
	AvatarPath string
	Location   string
	UpdatedAt  string
}

// UserProfile is the schema definition for users.profile
var UserProfile = UserProfileTable{
	Table:      "users.profile",
	ID:         "id",
	Name:       "name",
	Gender:     "gender",
	Mobile:     "mobile",
	AvatarURL:  "avatarurl",
	AvatarPath: "avatarpath",
	Location:   "location",
	UpdatedAt:  "updatedat",
}

// Columns returns all column names in scan order
func (t UserProfileTable) Columns() []string {
	return []string{t.ID, t.Name, t.Gender, t.Mobile, t.AvatarURL, t.AvatarPath, t.Location, t.UpdatedAt}
}
