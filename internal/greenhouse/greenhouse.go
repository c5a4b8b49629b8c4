// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package greenhouse provides the telemetry side of the console.

A [Poller] samples a sensor [Source] on a fixed interval and persists every
reading. The [Service] answers dashboard queries: the latest reading with a
status per metric, the reading history, per-metric thresholds, and the
ventilation fan speed.

# Status

Each metric has a comfortable band [min, max]. Inside it the metric is normal.
Outside it, the metric is a warning until it strays further than
[CriticalMargin] of the band width, after which it is critical.
*/
package greenhouse

import (
	"time"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
)

// # Domain Entities

// Metric names one sensor channel.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricCO2         Metric = "co2"
)

// Metrics lists every channel in dashboard order.
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricCO2}

// Unit returns the display unit of the metric.
func (metric Metric) Unit() string {
	switch metric {
	case MetricTemperature:
		return "°C"
	case MetricHumidity:
		return "%"
	case MetricCO2:
		return "ppm"
	}
	return ""
}

// ParseMetric validates a metric name from a URL.
func ParseMetric(name string) (Metric, error) {
	for _, metric := range Metrics {
		if string(metric) == name {
			return metric, nil
		}
	}
	return "", ErrUnknownMetric
}

// Reading is one sample of every sensor channel.
type Reading struct {
	ID          string    `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	Timestamp   time.Time `json:"timestamp"`
}

// Value returns the reading for one channel.
func (reading Reading) Value(metric Metric) float64 {
	switch metric {
	case MetricTemperature:
		return reading.Temperature
	case MetricHumidity:
		return reading.Humidity
	case MetricCO2:
		return reading.CO2
	}
	return 0
}

// Values returns the reading keyed by metric name.
func (reading Reading) Values() map[string]float64 {
	values := make(map[string]float64, len(Metrics))
	for _, metric := range Metrics {
		values[string(metric)] = reading.Value(metric)
	}
	return values
}

// # Thresholds

// Status classifies a metric value against its thresholds.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// CriticalMargin is the fraction of the band width a value may stray outside the band before it is critical.
const CriticalMargin = 0.25

// Thresholds is the comfortable band of one metric.
type Thresholds struct {
	Metric    Metric    `json:"metric"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Status classifies value.
func (thresholds Thresholds) Status(value float64) Status {
	if value >= thresholds.Min && value <= thresholds.Max {
		return StatusNormal
	}

	margin := (thresholds.Max - thresholds.Min) * CriticalMargin
	if value < thresholds.Min-margin || value > thresholds.Max+margin {
		return StatusCritical
	}
	return StatusWarning
}

// DefaultThresholds apply until an operator stores their own.
var DefaultThresholds = map[Metric]Thresholds{
	MetricTemperature: {Metric: MetricTemperature, Min: 18, Max: 28},
	MetricHumidity:    {Metric: MetricHumidity, Min: 50, Max: 70},
	MetricCO2:         {Metric: MetricCO2, Min: 400, Max: 800},
}

// sensorLimits bound what a threshold may be set to.
var sensorLimits = map[Metric]Thresholds{
	MetricTemperature: {Min: -40, Max: 80},
	MetricHumidity:    {Min: 0, Max: 100},
	MetricCO2:         {Min: 0, Max: 10000},
}

// MetricStatus is one dashboard card.
type MetricStatus struct {
	Metric Metric  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Status Status  `json:"status"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Snapshot is the latest reading with a status per metric.
type Snapshot struct {
	Reading Reading        `json:"reading"`
	Metrics []MetricStatus `json:"metrics"`
}

// # Fan

const (
	FanSpeedMin = 0
	FanSpeedMax = 100

	settingFanSpeed = "fan_speed"
)

// Fan is the ventilation fan setting in percent.
type Fan struct {
	Speed     int       `json:"speed"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// # Errors

var (
	ErrNoReadings      = apperr.NotFound("Reading")
	ErrUnknownMetric   = apperr.NotFound("Metric")
	ErrSettingNotFound = apperr.NotFound("Setting")
)

const (
	FieldMin   = "min"
	FieldMax   = "max"
	FieldSpeed = "speed"
	FieldHours = "hours"

	DefaultHistoryHours = 24
	MaxHistoryHours     = 24 * 7
)
