package domain

import "errors"

// Sentinel errors for the per-minute failure taxonomy. Corrupt payloads and
// transport failures are retried and then abandoned; decompression and parse
// failures abandon only their minute; a duplicate (VDID, minute) pair means
// an upstream contract breach and aborts the whole day.
var (
	ErrCorruptPayload = errors.New("payload below minimum size")
	ErrDecompress     = errors.New("decompress payload")
	ErrParse          = errors.New("parse document")
	ErrDuplicateSlot  = errors.New("duplicate minute for detector")
)
