// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import "time"

// SetClock replaces the clock used for throttle bookkeeping and expiry checks.
func (client *Client) SetClock(now func() time.Time) {
	client.now = now
}

// SignInBuckets reports how many emails hold a throttle bucket.
func (client *Client) SignInBuckets() int {
	client.limiterMutex.Lock()
	defer client.limiterMutex.Unlock()
	return len(client.limiters)
}

// SweepSignInBuckets runs one eviction pass of the Run loop.
func (client *Client) SweepSignInBuckets() {
	client.sweepLimiters()
}
