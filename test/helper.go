package test_test

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

// UTCTime creates instance of time in UTC timezone this helps avoid problems running tests with different timezone computers
func UTCTime(sec int64) time.Time {
	return time.Unix(sec, 0).In(time.UTC)
}

// HexBytes decodes candump style hex string (`01 02 A0`) to bytes. Spaces are ignored.
func HexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}
