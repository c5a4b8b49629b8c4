// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Source produces sensor readings.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// SimulatedSource generates plausible readings for a greenhouse without hardware.
type SimulatedSource struct {
	mutex  sync.Mutex
	random *rand.Rand
	now    func() time.Time
}

// NewSimulatedSource returns a source seeded with seed. The same seed yields the same values.
func NewSimulatedSource(seed uint64) *SimulatedSource {
	return &SimulatedSource{
		random: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
	}
}

// Read returns temperature in [22, 28), humidity in [55, 75) and CO2 in [400, 600).
func (source *SimulatedSource) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	source.mutex.Lock()
	defer source.mutex.Unlock()

	return Reading{
		Temperature: 22 + source.random.Float64()*6,
		Humidity:    55 + source.random.Float64()*20,
		CO2:         400 + source.random.Float64()*200,
		Timestamp:   source.now().UTC(),
	}, nil
}
