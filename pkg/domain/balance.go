package domain

import "math"

// Balance is an amount of the host's native value unit.
type Balance uint64

// Add returns b+o and false when the sum overflows.
func (b Balance) Add(o Balance) (Balance, bool) {
	if o > math.MaxUint64-b {
		return 0, false
	}
	return b + o, true
}

// Sub returns b-o and false when o exceeds b.
func (b Balance) Sub(o Balance) (Balance, bool) {
	if o > b {
		return 0, false
	}
	return b - o, true
}
