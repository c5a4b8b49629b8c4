// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserIdentityTable represents the 'users.identity' table
type UserIdentityTable struct {
	Table         string
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified string
	Metadata      string
	CreatedAt     string
	UpdatedAt     string
}

// UserIdentity is the schema definition for users.identity
var UserIdentity = UserIdentityTable{
	Table:         "users.identity",
	ID:            "id",
	Email:         "email",
	PasswordHash:  "passwordhash",
	EmailVerified: "emailverified",
	Metadata:      "metadata",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",
}
