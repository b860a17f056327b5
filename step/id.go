package step

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// NewCorrelationID returns an identifier for one execution request:
// a millisecond base-36 time prefix, a process-wide sequence number, and a
// random tail. IDs are unique under concurrent issuance (the sequence) and
// sort lexicographically by creation order (both segments are fixed-width).
// The ID doubles as the expected-sender token on the wire.
func NewCorrelationID() string {
	ms := pad36(strconv.FormatInt(time.Now().UnixMilli(), 36), 9)
	seq := pad36(strconv.FormatUint(idSeq.Add(1), 36), 8)

	var tail [4]byte
	rand.Read(tail[:]) //nolint:errcheck // crypto/rand never fails on supported platforms

	return ms + "-" + seq + "-" + hex.EncodeToString(tail[:])
}

func pad36(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
