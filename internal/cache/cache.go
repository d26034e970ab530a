// Package cache implements the fingerprint cache that short-circuits
// repeated inference calls. Keys are digests of (operation, arguments);
// values are opaque response payloads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Store is the injected cache abstraction. Handlers do an explicit
// Get / compute / Set; there is no implicit wrapping and no singleflight,
// so two concurrent misses for the same key may both call upstream.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Key derives a deterministic cache key from the operation name and its
// full argument tuple. Argument order is significant.
func Key(op string, args ...any) string {
	h := sha256.New()
	fmt.Fprint(h, op)
	for _, a := range args {
		fmt.Fprintf(h, ":%v", a)
	}
	return hex.EncodeToString(h.Sum(nil))
}
