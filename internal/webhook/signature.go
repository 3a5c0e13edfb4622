package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VerifySignature validates a `Transfeera-Signature: t=<unixMillis>,v1=<hex>`
// header against the raw request body. The HMAC-SHA256 is computed over
// "{timestamp}.{rawBody}" with the per-webhook-config shared secret and
// compared in constant time.
//
// It never returns an error: an unparseable or mismatched signature yields
// false, so the caller can still record the attempt for audit before
// rejecting the request. The extracted timestamp is returned for the caller's
// clock-skew check.
func VerifySignature(secret string, body []byte, header string) (bool, time.Time) {
	timestampMillis, digest, ok := parseSignatureHeader(header)
	if !ok {
		return false, time.Time{}
	}

	timestamp := time.UnixMilli(timestampMillis)

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestampMillis)
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(digest)
	if err != nil {
		return false, timestamp
	}

	return hmac.Equal(expected, provided), timestamp
}

func parseSignatureHeader(header string) (timestampMillis int64, digest string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", false
			}
			timestampMillis = ts
		case "v1":
			digest = value
		}
	}

	if timestampMillis == 0 || digest == "" {
		return 0, "", false
	}
	return timestampMillis, digest, true
}
