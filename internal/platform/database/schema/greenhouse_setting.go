// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// GreenhouseSettingTable represents the 'greenhouse.setting' table
type GreenhouseSettingTable struct {
	Table     string
	Key       string
	Value     string
	UpdatedAt string
}

var GreenhouseSetting = GreenhouseSettingTable{
	Table:     "greenhouse.setting",
	Key:       "key",
	Value:     "value",
	UpdatedAt: "updatedat",
}
