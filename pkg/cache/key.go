package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Key identifies a cached API response.
type Key struct {
	// Endpoint is the full endpoint URL without query string.
	Endpoint string

	// Params are the query parameters sent with the request.
	Params map[string]string

	// Token is a fingerprint of the credential the request was made with.
	Token string
}

// String generates a deterministic cache key string.
// Format: li:endpoint:param1=val1:param2=val2:tok=abcd
//
// Example:
//
//	li:api.linkedin.com/v2/adCampaignsV2:q=search:tok=9f86d081884c7d65
func (k Key) String() string {
	parts := []string{"li"}

	endpoint := strings.TrimPrefix(k.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.Trim(endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	if k.Token != "" {
		parts = append(parts, "tok="+k.Token)
	}

	return strings.Join(parts, ":")
}

// Fingerprint returns a short, non-reversible identifier for a credential.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
