package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// MaxKeyLength is the maximum length of a resolved key.
const MaxKeyLength = 512

// Key is either a flat string or a name plus structured parameters.
// Structured keys resolve to "name:<hash>" where hash is the xxhash of the
// parameters' canonical JSON, so equal parameters always share an entry
// regardless of map ordering or struct layout.
type Key struct {
	name       string
	params     any
	structured bool
}

// FlatKey is used verbatim.
func FlatKey(key string) Key {
	return Key{name: key}
}

// ParamsKey derives a key from name and params.
func ParamsKey(name string, params any) Key {
	return Key{name: name, params: params, structured: true}
}

func (k Key) Structured() bool {
	return k.structured
}

// Resolve returns the string the item is stored under.
func (k Key) Resolve() (string, error) {
	if err := validateKeyPart(k.name); err != nil {
		return "", err
	}
	if !k.structured {
		return k.name, nil
	}
	canonical, err := canonicalize(k.params)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "cache: canonicalize params of %q", k.name), ErrInvalidKey)
	}
	key := fmt.Sprintf("%s:%016x", k.name, xxhash.Sum64(canonical))
	if len(key) > MaxKeyLength {
		return "", errors.Wrapf(ErrInvalidKey, "%q exceeds %d bytes", k.name, MaxKeyLength)
	}
	return key, nil
}

func (k Key) String() string {
	s, err := k.Resolve()
	if err != nil {
		return k.name
	}
	return s
}

func validateKeyPart(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.Wrap(ErrInvalidKey, "empty key")
	}
	if len(s) > MaxKeyLength {
		return errors.Wrapf(ErrInvalidKey, "key exceeds %d bytes", MaxKeyLength)
	}
	if strings.ContainsAny(s, "\n\r") {
		return errors.Wrap(ErrInvalidKey, "key contains a line break")
	}
	return nil
}

// canonicalize round-trips v through a generic value so structs and maps
// with the same content encode identically; encoding/json sorts map keys.
func canonicalize(v any) ([]byte, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(buf, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
