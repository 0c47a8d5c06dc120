package orders

import (
	"crypto/rand"
	"time"
)

// numberAlphabet omits 0/O/1/I so order numbers survive being read over
// the phone.
const numberAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewOrderNumber generates a human-readable order number such as
// HB-20260901-7KQ4ZM. The random suffix plus the unique index on
// order_number keeps collisions to an insert-time retry.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	raw := make([]byte, 6)
	_, _ = rand.Read(raw)
	for i, b := range raw {
		suffix[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return "HB-" + now.UTC().Format("20060102") + "-" + string(suffix)
}
