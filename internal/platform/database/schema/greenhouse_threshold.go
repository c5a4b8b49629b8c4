// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// GreenhouseThresholdTable represents the 'greenhouse.threshold' table
type GreenhouseThresholdTable struct {
	Table     string
	Metric    string
	Min       string
	Max       string
	UpdatedAt string
}

var GreenhouseThreshold = GreenhouseThresholdTable{
	Table:     "greenhouse.threshold",
	Metric:    "metric",
	Min:       "minvalue",
	Max:       "maxvalue",
	UpdatedAt: "updatedat",
}
