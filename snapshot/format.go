package snapshot

import "errors"

const (
	// magicNumber identifies snapshot files (ASCII: "VMS1").
	magicNumber = 0x564d5331
	// version is the current snapshot format version.
	version = 1
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported snapshot version")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrUnknownCodec   = errors.New("unknown codec")
)

// header describes a snapshot file. It is written length-prefixed so the
// file is self-describing: codec and compression are selected by the
// names recorded here, never by configuration at load time.
type header struct {
	Magic       uint32
	Version     uint32
	Codec       string
	Compression string
	Checksum    uint32 // CRC32 (IEEE) of the compressed payload
}
