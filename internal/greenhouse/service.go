// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taibuivan/ventigrow/internal/platform/validate"
)

// Service answers dashboard queries and applies operator settings.
type Service struct {
	repository Repository
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a greenhouse [Service]. recorder may be nil.
func NewService(repository Repository, recorder Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		repository: repository,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// # Readings

/*
Current returns the latest reading with a status per metric.

Returns:
  - *Snapshot: Reading plus dashboard cards
  - error: ErrNoReadings before the first poll
*/
func (service *Service) Current(context context.Context) (*Snapshot, error) {
	reading, err := service.repository.LatestReading(context)
	if err != nil {
		return nil, err
	}

	thresholds, err := service.Thresholds(context)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Reading: *reading, Metrics: make([]MetricStatus, 0, len(thresholds))}
	for _, band := range thresholds {
		value := reading.Value(band.Metric)
		snapshot.Metrics = append(snapshot.Metrics, MetricStatus{
			Metric: band.Metric,
			Value:  value,
			Unit:   band.Metric.Unit(),
			Status: band.Status(value),
			Min:    band.Min,
			Max:    band.Max,
		})
	}
	return snapshot, nil
}

// History returns the readings of the last hours, oldest first.
func (service *Service) History(context context.Context, hours int) ([]Reading, error) {
	validator := &validate.Validator{}
	if err := validator.Range(FieldHours, hours, 1, MaxHistoryHours).Err(); err != nil {
		return nil, err
	}

	since := service.now().Add(-time.Duration(hours) * time.Hour)
	return service.repository.ReadingsSince(context, since)
}

// # Thresholds

// Thresholds returns the band of every metric, falling back to [DefaultThresholds].
func (service *Service) Thresholds(context context.Context) ([]Thresholds, error) {
	stored, err := service.repository.ListThresholds(context)
	if err != nil {
		return nil, err
	}

	byMetric := make(map[Metric]Thresholds, len(stored))
	for _, item := range stored {
		byMetric[item.Metric] = item
	}

	result := make([]Thresholds, 0, len(Metrics))
	for _, metric := range Metrics {
		if item, ok := byMetric[metric]; ok {
			result = append(result, item)
			continue
		}
		result = append(result, DefaultThresholds[metric])
	}
	return result, nil
}

// SetThresholds stores the band for metric. min must be below max.
func (service *Service) SetThresholds(context context.Context, metric Metric, min, max float64) (*Thresholds, error) {
	limits := sensorLimits[metric]

	validator := &validate.Validator{}
	validator.RangeFloat(FieldMin, min, limits.Min, limits.Max)
	validator.RangeFloat(FieldMax, max, limits.Min, limits.Max)
	validator.Custom(FieldMax, min >= max, "Must be greater than min")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	thresholds := &Thresholds{Metric: metric, Min: min, Max: max}
	if err := service.repository.UpsertThreshold(context, thresholds); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "greenhouse_thresholds_updated",
		slog.String("metric", string(metric)),
		slog.Float64("min", min),
		slog.Float64("max", max),
	)
	return thresholds, nil
}

// # Fan

// FanSpeed returns the stored fan speed, or a stopped fan when none was set.
func (service *Service) FanSpeed(context context.Context) (*Fan, error) {
	value, updatedAt, err := service.repository.GetSetting(context, settingFanSpeed)
	if errors.Is(err, ErrSettingNotFound) {
		return &Fan{Speed: FanSpeedMin}, nil
	}
	if err != nil {
		return nil, err
	}

	speed, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("greenhouse_fan_speed_corrupt: %w", err)
	}
	return &Fan{Speed: speed, UpdatedAt: updatedAt}, nil
}

// SetFanSpeed stores a fan speed in percent.
func (service *Service) SetFanSpeed(context context.Context, speed int) (*Fan, error) {
	validator := &validate.Validator{}
	if err := validator.Range(FieldSpeed, speed, FanSpeedMin, FanSpeedMax).Err(); err != nil {
		return nil, err
	}

	updatedAt, err := service.repository.PutSetting(context, settingFanSpeed, strconv.Itoa(speed))
	if err != nil {
		return nil, err
	}

	service.recorder.RecordFanSpeed(speed)
	service.logger.InfoContext(context, "greenhouse_fan_speed_set", slog.Int("speed", speed))
	return &Fan{Speed: speed, UpdatedAt: updatedAt}, nil
}
