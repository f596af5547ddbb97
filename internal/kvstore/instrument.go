package kvstore

import (
	"context"
	"errors"
)

// Result labels reported to a Recorder.
const (
	ResultOK    = "ok"
	ResultMiss  = "miss"
	ResultQuota = "quota_exceeded"
	ResultError = "error"
)

// Recorder receives one observation per storage call.
type Recorder interface {
	StorageOperation(op, result string)
}

type instrumented struct {
	base     Storage
	recorder Recorder
}

// Instrument reports every Get and Set on base to recorder. Ping is forwarded
// when base supports it.
func Instrument(base Storage, recorder Recorder) Storage {
	if recorder == nil {
		return base
	}
	return instrumented{base: base, recorder: recorder}
}

func (s instrumented) Get(ctx context.Context, key string) (string, error) {
	value, err := s.base.Get(ctx, key)
	s.recorder.StorageOperation("get", resultOf(err))
	return value, err
}

func (s instrumented) Set(ctx context.Context, key, value string) error {
	err := s.base.Set(ctx, key, value)
	s.recorder.StorageOperation("set", resultOf(err))
	return err
}

func (s instrumented) Ping(ctx context.Context) error {
	return Ping(ctx, s.base)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNotFound):
		return ResultMiss
	case errors.Is(err, ErrQuotaExceeded):
		return ResultQuota
	default:
		return ResultError
	}
}
