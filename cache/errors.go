package cache

import "errors"

var (
	// ErrInvalidArgument is returned for negative limits, sizes or durations.
	ErrInvalidArgument = errors.New("cache: invalid argument")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrNotFound is returned by GetOrLoad when the Loader has no value.
	ErrNotFound = errors.New("cache: value not found")

	// ErrNilKey is the panic value for a nil interface key.
	ErrNilKey = errors.New("cache: nil key")

	// ErrNilValue is the panic value for a nil interface value.
	ErrNilValue = errors.New("cache: nil value")
)

func checkKey[K comparable](k K) {
	if any(k) == nil {
		panic(ErrNilKey)
	}
}

func checkValue[V any](v V) {
	if any(v) == nil {
		panic(ErrNilValue)
	}
}
