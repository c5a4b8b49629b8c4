// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Recorder receives telemetry gauges. [*metrics.Collector] satisfies it.
type Recorder interface {
	RecordReading(values map[string]float64)
	RecordPollFailure()
	RecordFanSpeed(speed int)
}

type noopRecorder struct{}

func (noopRecorder) RecordReading(map[string]float64) {}
func (noopRecorder) RecordPollFailure()               {}
func (noopRecorder) RecordFanSpeed(int)               {}

// Poller samples a [Source] and persists every reading.
type Poller struct {
	source     Source
	repository Repository
	recorder   Recorder
	logger     *slog.Logger
	interval   time.Duration
}

// NewPoller wires a poller. recorder may be nil.
func NewPoller(source Source, repository Repository, recorder Recorder, logger *slog.Logger, interval time.Duration) *Poller {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Poller{
		source:     source,
		repository: repository,
		recorder:   recorder,
		logger:     logger,
		interval:   interval,
	}
}

/*
Run polls immediately and then every interval until ctx is cancelled.

A failed poll is logged and counted; the loop keeps going.
*/
func (poller *Poller) Run(ctx context.Context) error {
	poller.logger.Info("sensor_poller_started", slog.Duration("interval", poller.interval))

	ticker := time.NewTicker(poller.interval)
	defer ticker.Stop()

	for {
		if _, err := poller.PollOnce(ctx); err != nil && ctx.Err() == nil {
			poller.recorder.RecordPollFailure()
			poller.logger.Warn("sensor_poll_failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			poller.logger.Info("sensor_poller_stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce reads the source once and persists the reading.
func (poller *Poller) PollOnce(ctx context.Context) (*Reading, error) {
	reading, err := poller.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("sensor_read_failed: %w", err)
	}

	if err := poller.repository.InsertReading(ctx, &reading); err != nil {
		return nil, err
	}

	poller.recorder.RecordReading(reading.Values())
	poller.logger.Debug("sensor_reading_persisted",
		slog.Float64("temperature", reading.Temperature),
		slog.Float64("humidity", reading.Humidity),
		slog.Float64("co2", reading.CO2),
	)
	return &reading, nil
}
