// Package keys derives deterministic, collision-resistant cache keys from a
// logical domain, resource id, and optional parameter set, and normalizes
// externally supplied URLs so equivalent inputs map to the same key.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultVersion is the key schema version embedded in every derived key.
const DefaultVersion = "v1"

// paramsHashLen bounds the length of the hashed parameter suffix.
const paramsHashLen = 16

// trackingParams is the deny-list of query parameters stripped during URL
// normalization. utm_* is matched by prefix.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"igshid": true,
	"_ga":    true,
	"source": true,
}

// Codec derives cache keys with a fixed prefix and schema version.
// Keys have the shape prefix:version:domain:resourceId[:paramsHash].
type Codec struct {
	prefix  string
	version string
}

// NewCodec creates a codec producing keys under the given prefix.
func NewCodec(prefix string) *Codec {
	if prefix == "" {
		prefix = "hotly"
	}
	return &Codec{prefix: prefix, version: DefaultVersion}
}

// DeriveKey builds a cache key for the given domain and resource id. When
// params is non-empty its entries are serialized with sorted keys and hashed
// to a fixed-width suffix, so identical parameter sets yield identical keys
// regardless of map iteration order. Pure function, never fails.
func (c *Codec) DeriveKey(domain, resourceID string, params map[string]string) string {
	key := fmt.Sprintf("%s:%s:%s:%s", c.prefix, c.version, domain, resourceID)
	if len(params) == 0 {
		return key
	}
	return key + ":" + hashParams(params)
}

// DeriveURLKey builds a cache key for a URL-identified resource. The URL is
// normalized first so equivalent URLs collide on the same key.
func (c *Codec) DeriveURLKey(domain, rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return c.DeriveKey(domain, hex.EncodeToString(sum[:]), nil)
}

// hashParams serializes params with sorted keys and returns a fixed-width
// hex digest so arbitrary parameter sets cannot blow up key length.
func hashParams(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:paramsHashLen]
}

// NormalizeURL canonicalizes a URL so equivalent forms map to one string:
// scheme and host are lower-cased, the fragment is dropped, tracking query
// parameters are stripped and the remainder re-encoded in sorted order, and
// the path is lower-cased with a trailing slash trimmed (an empty path
// becomes "/"). Idempotent; unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for name := range query {
		if isTrackingParam(name) {
			query.Del(name)
		}
	}
	// url.Values.Encode sorts by key
	u.RawQuery = query.Encode()

	path := strings.ToLower(u.Path)
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""

	return u.String()
}

func isTrackingParam(name string) bool {
	return trackingParams[name] || strings.HasPrefix(name, "utm_")
}
