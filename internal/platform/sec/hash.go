// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// decoyHash is compared against when the account does not exist, so an unknown
// email costs the same bcrypt round as a wrong password.
var decoyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("ventigrow-decoy-password"), bcrypt.DefaultCost)
	return hash
})

// HashPassword hashes a plain-text password using the bcrypt algorithm.
//
// Passwords above 72 bytes are rejected with bcrypt.ErrPasswordTooLong.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
//
// An empty existingHash stands for a missing account: a decoy comparison runs
// and the result is always false.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	if existingHash == "" {
		_ = bcrypt.CompareHashAndPassword(decoyHash(), []byte(plainTextPassword))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
