package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"example.com/conversionsync/internal/domain"
)

// DeliveryKey returns a stable key for a conversion payload.
// Re-running a window produces the same keys, so duplicate deliveries can be matched up in logs
// or by a receiver that chooses to dedupe on the X-Delivery-Key header.
func DeliveryKey(p *domain.ConversionPayload) string {
	composite := fmt.Sprintf("%d|%s|%s", p.ActionID, p.Gclid, p.Timestamp)
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}
