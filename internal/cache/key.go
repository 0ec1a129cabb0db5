package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default key policy values.
const (
	DefaultBucketParam  = "_t"
	DefaultBucketWindow = 30 * time.Second
	DefaultPlaceholder  = "TIMESTAMP"
)

// DefaultBypassParams are the filter parameters whose presence disables
// deduplication for a request.
var DefaultBypassParams = []string{"is_unisex", "is_accessible", "has_changing_table"}

// RequestKey identifies an outgoing request for deduplication.
type RequestKey struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte

	// Issued is when the request was built. It places the key in a bucket
	// window; zero means the key is not time-bucketed.
	Issued time.Time
}

// String returns the request line the key describes.
func (k RequestKey) String() string {
	s := strings.ToUpper(k.Method) + " " + k.Path
	if len(k.Query) > 0 {
		s += "?" + k.Query.Encode()
	}
	return s
}

// KeyPolicy decides how request keys are deduplicated.
type KeyPolicy struct {
	// BucketParam is the query parameter carrying the time bucket.
	BucketParam string

	// BucketWindow is the width of a time bucket.
	BucketWindow time.Duration

	// Placeholder replaces the bucket value in normalized keys.
	Placeholder string

	// BypassParams are query parameters that disable deduplication.
	BypassParams []string
}

// DefaultKeyPolicy returns the default key policy.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		BucketParam:  DefaultBucketParam,
		BucketWindow: DefaultBucketWindow,
		Placeholder:  DefaultPlaceholder,
		BypassParams: append([]string(nil), DefaultBypassParams...),
	}
}

// Bypass reports whether the key carries any bypass parameter.
func (p KeyPolicy) Bypass(k RequestKey) bool {
	for _, param := range p.BypassParams {
		if k.Query.Has(param) {
			return true
		}
	}
	return false
}

// Normalize returns the deduplication slot for a key:
//
//	METHOD|path|sorted query|b:<body hash>|w<window>
//
// The bucket parameter's value is replaced by the placeholder, and the
// window index is Issued divided by BucketWindow. Keys issued inside the
// same window share a slot; keys from different windows never do.
func (p KeyPolicy) Normalize(k RequestKey) string {
	var b strings.Builder

	b.WriteString(strings.ToUpper(k.Method))
	b.WriteByte('|')
	b.WriteString(k.Path)
	b.WriteByte('|')
	b.WriteString(p.normalizeQuery(k.Query))

	if len(k.Body) > 0 {
		b.WriteString("|b:")
		b.WriteString(hashBody(k.Body))
	}

	if !k.Issued.IsZero() && p.BucketWindow > 0 {
		b.WriteString("|w")
		b.WriteString(strconv.FormatInt(k.Issued.UnixNano()/int64(p.BucketWindow), 10))
	}

	return b.String()
}

// BucketValue returns the bucket parameter value for t.
func (p KeyPolicy) BucketValue(t time.Time) string {
	if p.BucketWindow <= 0 {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return strconv.FormatInt(t.UnixNano()/int64(p.BucketWindow), 10)
}

// normalizeQuery encodes the query sorted by key with the bucket value
// replaced by the placeholder.
func (p KeyPolicy) normalizeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	if p.BucketParam == "" || !q.Has(p.BucketParam) {
		return q.Encode()
	}

	normalized := make(url.Values, len(q))
	for k, v := range q {
		normalized[k] = v
	}
	normalized[p.BucketParam] = []string{p.Placeholder}

	return normalized.Encode()
}

// hashBody returns the first 8 bytes of the body's SHA256 as hex.
func hashBody(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:8])
}

// HashKey returns the SHA256 hex digest of a key, used to keep store keys
// bounded in length.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
