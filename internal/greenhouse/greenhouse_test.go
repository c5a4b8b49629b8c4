// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/greenhouse"
	"github.com/taibuivan/ventigrow/internal/platform/apperr"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestThresholds_Status(t *testing.T) {
	band := greenhouse.Thresholds{Metric: greenhouse.MetricTemperature, Min: 18, Max: 28}

	tests := []struct {
		value float64
		want  greenhouse.Status
	}{
		{18, greenhouse.StatusNormal},
		{23, greenhouse.StatusNormal},
		{28, greenhouse.StatusNormal},
		{17, greenhouse.StatusWarning},
		{30.5, greenhouse.StatusWarning},
		{15.4, greenhouse.StatusCritical},
		{31, greenhouse.StatusCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, band.Status(tt.value), "value %v", tt.value)
	}
}

func TestParseMetric(t *testing.T) {
	metric, err := greenhouse.ParseMetric("co2")
	require.NoError(t, err)
	assert.Equal(t, greenhouse.MetricCO2, metric)
	assert.Equal(t, "ppm", metric.Unit())

	_, err = greenhouse.ParseMetric("light")
	assert.ErrorIs(t, err, greenhouse.ErrUnknownMetric)
}

func TestSimulatedSource(t *testing.T) {
	first := greenhouse.NewSimulatedSource(7)
	second := greenhouse.NewSimulatedSource(7)

	for range 50 {
		reading, err := first.Read(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, reading.Temperature, 22.0)
		assert.Less(t, reading.Temperature, 28.0)
		assert.GreaterOrEqual(t, reading.Humidity, 55.0)
		assert.Less(t, reading.Humidity, 75.0)
		assert.GreaterOrEqual(t, reading.CO2, 400.0)
		assert.Less(t, reading.CO2, 600.0)

		twin, err := second.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, reading.Temperature, twin.Temperature)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := first.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// # Poller

func TestPoller_PollOnce(t *testing.T) {
	repository := newMemoryRepository()
	recorder := &fakeRecorder{}
	poller := greenhouse.NewPoller(greenhouse.NewSimulatedSource(1), repository, recorder, discardLogger, time.Minute)

	reading, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", reading.ID)
	require.Len(t, recorder.readings, 1)
	assert.Equal(t, reading.CO2, recorder.readings[0]["co2"])
}

func TestPoller_RunSurvivesFailures(t *testing.T) {
	repository := newMemoryRepository()
	repository.insertErr = errors.New("database is down")
	recorder := &fakeRecorder{}
	poller := greenhouse.NewPoller(greenhouse.NewSimulatedSource(1), repository, recorder, discardLogger, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return recorder.failureCount() >= 2 }, time.Second, 5*time.Millisecond)

	repository.mutex.Lock()
	repository.insertErr = nil
	repository.mutex.Unlock()
	require.Eventually(t, func() bool { return repository.count() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

// # Service

func TestService_Current(t *testing.T) {
	repository := newMemoryRepository()
	service := greenhouse.NewService(repository, nil, discardLogger)

	_, err := service.Current(context.Background())
	assert.ErrorIs(t, err, greenhouse.ErrNoReadings)

	require.NoError(t, repository.InsertReading(context.Background(), &greenhouse.Reading{
		Temperature: 31, Humidity: 60, CO2: 850, Timestamp: time.Now(),
	}))
	_, err = service.SetThresholds(context.Background(), greenhouse.MetricCO2, 400, 1000)
	require.NoError(t, err)

	snapshot, err := service.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Metrics, 3)

	statuses := map[greenhouse.Metric]greenhouse.Status{}
	for _, card := range snapshot.Metrics {
		statuses[card.Metric] = card.Status
	}
	assert.Equal(t, greenhouse.StatusCritical, statuses[greenhouse.MetricTemperature])
	assert.Equal(t, greenhouse.StatusNormal, statuses[greenhouse.MetricHumidity])
	assert.Equal(t, greenhouse.StatusNormal, statuses[greenhouse.MetricCO2], "stored band overrides default")
}

func TestService_History(t *testing.T) {
	repository := newMemoryRepository()
	service := greenhouse.NewService(repository, nil, discardLogger)

	now := time.Now()
	for _, age := range []time.Duration{30 * time.Hour, 10 * time.Hour, time.Hour} {
		require.NoError(t, repository.InsertReading(context.Background(), &greenhouse.Reading{Timestamp: now.Add(-age)}))
	}

	readings, err := service.History(context.Background(), 24)
	require.NoError(t, err)
	assert.Len(t, readings, 2)

	for _, hours := range []int{0, greenhouse.MaxHistoryHours + 1} {
		_, err := service.History(context.Background(), hours)
		assert.NotNil(t, apperr.As(err), "hours %d", hours)
	}
}

func TestService_SetThresholds(t *testing.T) {
	service := greenhouse.NewService(newMemoryRepository(), nil, discardLogger)

	_, err := service.SetThresholds(context.Background(), greenhouse.MetricHumidity, 70, 50)
	require.Error(t, err)
	assert.Equal(t, "max", apperr.As(err).Details[0].Field)

	_, err = service.SetThresholds(context.Background(), greenhouse.MetricHumidity, 10, 120)
	require.Error(t, err)

	saved, err := service.SetThresholds(context.Background(), greenhouse.MetricHumidity, 45, 75)
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	thresholds, err := service.Thresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, greenhouse.MetricTemperature, thresholds[0].Metric)
	assert.Equal(t, 45.0, thresholds[1].Min)
	assert.Equal(t, 800.0, thresholds[2].Max)
}

func TestService_FanSpeed(t *testing.T) {
	recorder := &fakeRecorder{}
	service := greenhouse.NewService(newMemoryRepository(), recorder, discardLogger)

	fan, err := service.FanSpeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fan.Speed)

	for _, speed := range []int{-1, 101} {
		_, err := service.SetFanSpeed(context.Background(), speed)
		assert.Error(t, err, "speed %d", speed)
	}

	_, err = service.SetFanSpeed(context.Background(), 70)
	require.NoError(t, err)

	fan, err = service.FanSpeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 70, fan.Speed)
	assert.Equal(t, []int{70}, recorder.fanSpeeds)
}
