// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package textnorm normalizes user-supplied text before it is stored.
//
// Profile fields and identity emails pass through here so that visually equal
// strings compare equal in Postgres.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Text returns s in NFC form with control characters removed, inner
// whitespace runs collapsed to one space, and the ends trimmed.
func Text(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Email returns the canonical, case-folded form of an email address.
func Email(s string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}
