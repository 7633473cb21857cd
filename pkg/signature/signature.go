// Package signature signs and verifies provider requests and webhooks.
//
// The signature is hex(HMAC-SHA256(secret, appID + timestamp + body)) where
// timestamp is the 10-digit UNIX seconds string sent in the Timestamp header
// and body is the exact byte sequence on the wire.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// Header names shared by outbound requests and inbound webhooks.
const (
	HeaderAppID     = "Appid"
	HeaderSign      = "Sign"
	HeaderTimestamp = "Timestamp"
)

// Signer holds the application credentials issued by the provider.
type Signer struct {
	appID  string
	secret []byte
}

func NewSigner(appID, secret string) *Signer {
	return &Signer{appID: appID, secret: []byte(secret)}
}

// AppID returns the application identifier this signer signs as.
func (s *Signer) AppID() string {
	return s.appID
}

// Sign computes the signature for body at the given timestamp.
// A nil or empty body hashes as the empty string.
func (s *Signer) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(s.appID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers returns the AppId/Sign/Timestamp triple for body signed at now.
func (s *Signer) Headers(now time.Time, body []byte) map[string]string {
	ts := FormatTimestamp(now)
	return map[string]string{
		HeaderAppID:     s.appID,
		HeaderSign:      s.Sign(ts, body),
		HeaderTimestamp: ts,
	}
}

// Verify reports whether claimedSignature is valid for payload under the
// local secret. Both the app id and the signature are compared in constant
// time and both comparisons always run. Malformed input yields false.
func (s *Signer) Verify(payload []byte, claimedAppID, claimedSignature, claimedTimestamp string) bool {
	appOK := subtle.ConstantTimeCompare([]byte(claimedAppID), []byte(s.appID))

	expected, _ := hex.DecodeString(s.Sign(claimedTimestamp, payload))
	claimed, err := hex.DecodeString(claimedSignature)
	if err != nil {
		claimed = nil
	}
	sigOK := 0
	if hmac.Equal(expected, claimed) {
		sigOK = 1
	}

	return appOK&sigOK == 1
}

// FormatTimestamp renders t as UNIX seconds.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// ParseTimestamp accepts exactly ten decimal digits.
func ParseTimestamp(ts string) (time.Time, bool) {
	if len(ts) != 10 {
		return time.Time{}, false
	}
	for i := 0; i < len(ts); i++ {
		if ts[i] < '0' || ts[i] > '9' {
			return time.Time{}, false
		}
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
