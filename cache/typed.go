package cache

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Decode converts cached data to T. Values put in this process are returned
// by type assertion. Values rebuilt from a store arrive as generic maps and
// slices and are converted through JSON.
func Decode[T any](data any) (T, error) {
	if typed, ok := data.(T); ok {
		return typed, nil
	}
	var result T
	buf, err := json.Marshal(data)
	if err != nil {
		return result, errors.Mark(errors.Wrapf(err, "cache: convert %T", data), ErrDecode)
	}
	if err := json.Unmarshal(buf, &result); err != nil {
		var zero T
		return zero, errors.Mark(errors.Wrapf(err, "cache: convert %T to %T", data, zero), ErrDecode)
	}
	return result, nil
}

// GetAs returns the data stored under key in l as T.
func GetAs[T any](l *Layer, key string) (T, bool, error) {
	item, ok := l.Get(key)
	if !ok {
		var zero T
		return zero, false, nil
	}
	v, err := Decode[T](item.Data)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}
