// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"context"
	"time"
)

// Repository persists readings, thresholds, and console settings.
type Repository interface {
	InsertReading(context context.Context, reading *Reading) error
	LatestReading(context context.Context) (*Reading, error)
	ReadingsSince(context context.Context, since time.Time) ([]Reading, error)

	ListThresholds(context context.Context) ([]Thresholds, error)
	UpsertThreshold(context context.Context, thresholds *Thresholds) error

	GetSetting(context context.Context, key string) (string, time.Time, error)
	PutSetting(context context.Context, key, value string) (time.Time, error)
}
