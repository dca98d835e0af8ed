package storage

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

// Well-known context keys.
const (
	KeyPendingAppointment = "pendingAppointment"
	KeyPendingPayment     = "pendingPayment"
	KeyLastStockResults   = "lastStockResults"
	KeyPendingPurchase    = "pendingPurchase"
)

// Context is the free-form per-conversation scratch space.
type Context map[string]any

// merge applies patch in place; nil values delete.
func (c Context) merge(patch Context) {
	for k, v := range patch {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
}

// ContextValue reads key from c as a T. Values written in-process are
// returned as-is; values that went through a JSON round-trip (maps, float64
// numbers, RFC 3339 strings) are decoded into T.
func ContextValue[T any](c Context, key string) (T, bool) {
	var out T
	raw, ok := c[key]
	if !ok || raw == nil {
		return out, false
	}
	switch v := raw.(type) {
	case T:
		return v, true
	case *T:
		if v == nil {
			return out, false
		}
		return *v, true
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return out, false
	}
	if err := dec.Decode(raw); err != nil {
		return out, false
	}
	return out, true
}
