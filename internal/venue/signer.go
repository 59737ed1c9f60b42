// signer.go implements HMAC-SHA256 request signing for the venue's REST
// API: the canonical query string is signed with the account secret and
// the hex digest appended as the signature parameter.
package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signer holds the API credentials used to authenticate REST requests.
type Signer struct {
	APIKey    string
	SecretKey string
}

// NewSigner creates a Signer from the given credentials.
func NewSigner(apiKey, secretKey string) Signer {
	return Signer{APIKey: apiKey, SecretKey: secretKey}
}

// Sign returns the hex-encoded HMAC-SHA256 of query using the secret key.
func (s Signer) Sign(query string) string {
	mac := hmac.New(sha256.New, []byte(s.SecretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedQuery appends "&signature=<hex>" to query, where the signature is
// computed over the unsigned query exactly as given.
func (s Signer) SignedQuery(query string) string {
	return query + "&signature=" + s.Sign(query)
}

// fmtDecimal formats v with up to 8 fractional digits, trimming trailing
// zeros and a trailing decimal point. Ported from the venue's own
// formatting routine: 0.01000000 -> "0.01", 50000.00 -> "50000",
// 1.23456789 -> "1.23456789".
func fmtDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 8, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
