package backtest

import (
	"bytes"

	"github.com/google/uuid"
)

// RunID derives a stable identifier from the run inputs, so replaying the
// same configuration over the same data always logs under the same ID
func RunID(parts ...[]byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, bytes.Join(parts, []byte{0})).String()
}
