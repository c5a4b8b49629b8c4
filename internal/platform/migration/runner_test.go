// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/ventigrow/internal/platform/migration"
)

func TestToPgx5DSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/vg", "pgx5://u:p@db:5432/vg"},
		{"postgresql://u:p@db:5432/vg", "pgx5://u:p@db:5432/vg"},
		{"pgx5://u:p@db:5432/vg", "pgx5://u:p@db:5432/vg"},
		{"host=db user=u", "host=db user=u"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migration.ToPgx5DSN(tt.in))
	}
}
