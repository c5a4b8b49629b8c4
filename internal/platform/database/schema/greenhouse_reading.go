// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// GreenhouseReadingTable represents the 'greenhouse.reading' table
type GreenhouseReadingTable struct {
	Table       string
	ID          string
	Temperature string
	Humidity    string
	CO2         string
	RecordedAt  string
}

// GreenhouseReading is the schema definition for greenhouse.reading
var GreenhouseReading = GreenhouseReadingTable{
	Table:       "greenhouse.reading",
	ID:          "id",
	Temperature: "temperature",
	Humidity:    "humidity",
	CO2:         "co2",
	RecordedAt:  "recordedat",
}

// Columns returns all column names in scan order
func (t GreenhouseReadingTable) Columns() []string {
	return []string{t.ID, t.Temperature, t.Humidity, t.CO2, t.RecordedAt}
}
