package marshal

import (
	"bytes"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/klauspost/compress/zstd"
	"github.com/mna/nenuphar/lang/machine"
)

// imageMagic tags a program image so a loader can reject unrelated files
// before attempting to decompress or verify them.
const imageMagic = "NPHI"

// imageKey0/imageKey1 key the integrity digest. A fixed key is adequate here
// because the digest guards against corruption and accidental mismatch
// between producer and consumer, not against a deliberate adversary with
// write access to the image file; a host that needs the latter should supply
// its own keys through a later revision of this format.
const imageKey0, imageKey1 = 0x6e656e75706861, 0x7220696d616765

// WriteImage marshals v (with the given reverse registry) and writes it as a
// compressed, checksummed program image: magic, varint uncompressed length,
// 8-byte siphash digest of the uncompressed bytes, zstd-compressed payload.
func WriteImage(v machine.Value, registry map[machine.Value]string) ([]byte, error) {
	raw, err := Marshal(v, registry)
	if err != nil {
		return nil, fmt.Errorf("marshal: write image: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("marshal: write image: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)

	digest := siphash.Hash(imageKey0, imageKey1, raw)

	var buf bytes.Buffer
	buf.WriteString(imageMagic)
	s := newSink()
	putVarint(s, int32(len(raw)))
	buf.Write(s.Bytes())
	var digestBuf [8]byte
	for i := range digestBuf {
		digestBuf[i] = byte(digest >> (8 * i))
	}
	buf.Write(digestBuf[:])
	buf.Write(compressed)
	return buf.Bytes(), nil
}

// ReadImage is the symmetric reader: it validates the magic and digest
// before ever handing decompressed bytes to Unmarshal, so a corrupted or
// unrelated file is rejected cheaply.
func ReadImage(data []byte, registry map[string]machine.Value) (machine.Value, error) {
	if len(data) < len(imageMagic) || string(data[:len(imageMagic)]) != imageMagic {
		return nil, wrapf(ErrBadOpcode, "marshal: not a program image")
	}
	d := newDecoder(data[len(imageMagic):])
	rawLen, err := readVarint(d)
	if err != nil {
		return nil, fmt.Errorf("marshal: read image: %w", err)
	}
	if rawLen < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative image payload length %d", rawLen)
	}
	digestBuf, err := d.readBytes(8)
	if err != nil {
		return nil, fmt.Errorf("marshal: read image: %w", err)
	}
	var wantDigest uint64
	for i, b := range digestBuf {
		wantDigest |= uint64(b) << (8 * i)
	}

	compressed := data[len(imageMagic)+d.pos:]
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("marshal: read image: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("marshal: read image: decompress: %w", err)
	}

	if got := siphash.Hash(imageKey0, imageKey1, raw); got != wantDigest {
		return nil, wrapf(ErrBadOpcode, "marshal: image digest mismatch (corrupt file)")
	}

	v, _, err := Unmarshal(raw, registry)
	return v, err
}
