package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// encodeSamples packs a voltage array into a little-endian float64 blob.
func encodeSamples(samples []float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// decodeSamples is the inverse of encodeSamples.
func decodeSamples(buf []byte) []float64 {
	samples := make([]float64, len(buf)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return samples
}
