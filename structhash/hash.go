// Package structhash computes deterministic digests of nested state.
//
// A value is first encoded canonically (JSON with sorted map keys and the
// declared struct field order) and the encoding is hashed with xxhash64.
// Two values with equal encodings always produce the same Key, so a Key can
// address caches of anything derived purely from the hashed value.
package structhash

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key is a structural hash.
type Key uint64

// String returns the key as 16 lowercase hex digits.
func (k Key) String() string {
	s := strconv.FormatUint(uint64(k), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}

// MarshalJSON encodes the key as its hex string so keys can be nested in
// other hashed values without float64 precision loss.
func (k Key) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Of hashes v. It fails only when v cannot be encoded (channels, funcs,
// NaN or infinite floats).
func Of(v any) (Key, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("structhash: encode %T: %w", v, err)
	}
	return Key(xxhash.Sum64(data)), nil
}

// MustOf is like Of but panics on encoding failure. Use it for values
// whose shape is known to encode, such as engine state snapshots.
func MustOf(v any) Key {
	k, err := Of(v)
	if err != nil {
		panic(err)
	}
	return k
}
