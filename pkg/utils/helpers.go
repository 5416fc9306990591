package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenID generates a unique message ID using the current UTC nanosecond
// timestamp and an atomic sequence number. The format is "msg-<timestamp>-<seq>".
func GenID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}

// GenSessionID generates a guest session identifier of the form
// "session_<unix_ms>_<random>". The random suffix is 8 hex characters.
func GenSessionID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the sequence counter; uniqueness still holds per process
		s := atomic.AddUint64(&idSeq, 1)
		return fmt.Sprintf("session_%d_%08d", time.Now().UTC().UnixMilli(), s)
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UTC().UnixMilli(), hex.EncodeToString(b[:]))
}

// NowISO returns the current UTC time formatted as RFC 3339 with
// millisecond precision, the timestamp format carried on messages.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
