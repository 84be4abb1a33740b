// Package snapshot serializes a collection to a durable blob and back.
//
// A snapshot is a single self-describing blob: a fixed header naming the
// codec and compression used, a CRC32 of the compressed payload, and the
// payload itself. Files written by older codecs remain loadable because
// the header, not the caller, selects the decoder.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/vecmatch/vecmatch/blobstore"
	"github.com/vecmatch/vecmatch/codec"
	"github.com/vecmatch/vecmatch/metadata"
	"github.com/vecmatch/vecmatch/store"
)

// Options customize snapshot writing.
type Options struct {
	// Codec encodes the payload. Defaults to codec.Default.
	Codec codec.Codec

	// Compression applied to the encoded payload.
	Compression Compression
}

// DefaultOptions are the default snapshot options.
var DefaultOptions = Options{
	Codec:       codec.Default,
	Compression: CompressionZstd,
}

type payloadRecord struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata metadata.Document `json:"metadata,omitempty"`
}

type payload struct {
	Dimension int             `json:"dimension"`
	Records   []payloadRecord `json:"records"`
}

// Write serializes the memory store's current state to w.
func Write(mem *store.Memory, w io.Writer, optFns ...func(o *Options)) error {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	snap := mem.Snapshot()
	p := payload{
		Dimension: snap.Dimension(),
		Records:   make([]payloadRecord, 0, snap.Len()),
	}

	for _, rec := range snap.All() {
		p.Records = append(p.Records, payloadRecord{
			ID:       rec.ID,
			Vector:   rec.Vector,
			Metadata: rec.Metadata,
		})
	}

	encoded, err := opts.Codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	compressed, err := compress(opts.Compression, encoded)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	h := header{
		Magic:       magicNumber,
		Version:     version,
		Codec:       opts.Codec.Name(),
		Compression: string(opts.Compression),
		Checksum:    crc32.ChecksumIEEE(compressed),
	}

	if err := writeHeader(w, h); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(compressed))); err != nil {
		return fmt.Errorf("write payload length: %w", err)
	}

	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// Read deserializes a snapshot and rebuilds an in-memory store from it.
func Read(r io.Reader) (*store.Memory, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}

	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("read payload length: %w", err)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	if sum := crc32.ChecksumIEEE(compressed); sum != h.Checksum {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrChecksum, sum, h.Checksum)
	}

	encoded, err := decompress(Compression(h.Compression), compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var p payload
	if err := c.Unmarshal(encoded, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	mem, err := store.NewMemory(p.Dimension)
	if err != nil {
		return nil, err
	}

	recs := make([]store.Record, len(p.Records))
	for i, pr := range p.Records {
		recs[i] = store.Record{ID: pr.ID, Vector: pr.Vector, Metadata: pr.Metadata}
	}

	if err := mem.BulkLoad(context.Background(), recs); err != nil {
		return nil, fmt.Errorf("rebuild collection: %w", err)
	}

	return mem, nil
}

// Save writes a snapshot of mem to the blob store under the given name.
func Save(ctx context.Context, bs blobstore.Store, name string, mem *store.Memory, optFns ...func(o *Options)) error {
	var buf bytes.Buffer
	if err := Write(mem, &buf, optFns...); err != nil {
		return err
	}
	return bs.Put(ctx, name, buf.Bytes())
}

// Load reads a snapshot blob and rebuilds the collection it contains.
func Load(ctx context.Context, bs blobstore.Store, name string) (*store.Memory, error) {
	data, err := bs.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data))
}

func writeHeader(w io.Writer, h header) error {
	if err := binary.Write(w, binary.LittleEndian, h.Magic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, h.Version); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeString(w, h.Codec); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeString(w, h.Compression); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, h.Checksum); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) (header, error) {
	var h header

	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if h.Magic != magicNumber {
		return h, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}

	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if h.Version != version {
		return h, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}

	var err error
	if h.Codec, err = readString(r); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if h.Compression, err = readString(r); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Checksum); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}

	return h, nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
