// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taibuivan/ventigrow/internal/greenhouse"
)

type memoryRepository struct {
	mutex      sync.Mutex
	readings   []greenhouse.Reading
	thresholds map[greenhouse.Metric]greenhouse.Thresholds
	settings   map[string]string
	insertErr  error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		thresholds: make(map[greenhouse.Metric]greenhouse.Thresholds),
		settings:   make(map[string]string),
	}
}

func (repository *memoryRepository) InsertReading(_ context.Context, reading *greenhouse.Reading) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if repository.insertErr != nil {
		return repository.insertErr
	}
	reading.ID = fmt.Sprintf("r%d", len(repository.readings)+1)
	repository.readings = append(repository.readings, *reading)
	return nil
}

func (repository *memoryRepository) LatestReading(context.Context) (*greenhouse.Reading, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if len(repository.readings) == 0 {
		return nil, greenhouse.ErrNoReadings
	}
	latest := repository.readings[len(repository.readings)-1]
	return &latest, nil
}

func (repository *memoryRepository) ReadingsSince(_ context.Context, since time.Time) ([]greenhouse.Reading, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	var result []greenhouse.Reading
	for _, reading := range repository.readings {
		if !reading.Timestamp.Before(since) {
			result = append(result, reading)
		}
	}
	return result, nil
}

func (repository *memoryRepository) ListThresholds(context.Context) ([]greenhouse.Thresholds, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	var result []greenhouse.Thresholds
	for _, item := range repository.thresholds {
		result = append(result, item)
	}
	return result, nil
}

func (repository *memoryRepository) UpsertThreshold(_ context.Context, thresholds *greenhouse.Thresholds) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	thresholds.UpdatedAt = time.Now().UTC()
	repository.thresholds[thresholds.Metric] = *thresholds
	return nil
}

func (repository *memoryRepository) GetSetting(_ context.Context, key string) (string, time.Time, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	value, ok := repository.settings[key]
	if !ok {
		return "", time.Time{}, greenhouse.ErrSettingNotFound
	}
	return value, time.Now(), nil
}

func (repository *memoryRepository) PutSetting(_ context.Context, key, value string) (time.Time, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.settings[key] = value
	return time.Now(), nil
}

func (repository *memoryRepository) count() int {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	return len(repository.readings)
}

type fakeRecorder struct {
	mutex     sync.Mutex
	readings  []map[string]float64
	failures  int
	fanSpeeds []int
}

func (recorder *fakeRecorder) RecordReading(values map[string]float64) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.readings = append(recorder.readings, values)
}

func (recorder *fakeRecorder) RecordPollFailure() {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.failures++
}

func (recorder *fakeRecorder) RecordFanSpeed(speed int) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.fanSpeeds = append(recorder.fanSpeeds, speed)
}

func (recorder *fakeRecorder) failureCount() int {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.failures
}
