package catalog

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/viant/imagespider/index/bruteforce"
)

const snapshotMagic = "ISNP"

// maxSnapshotHeader bounds the JSON header read from untrusted input.
const maxSnapshotHeader = 64 << 20

// ErrInvalidSnapshot is returned for input that is not a snapshot.
var ErrInvalidSnapshot = errors.New("catalog: invalid snapshot")

type snapshotHeader struct {
	Header
	Seqs  []uint64 `json:"seqs"`
	Paths []string `json:"paths"`
}

// WriteSnapshot writes h and entries as: "ISNP", headerLen(uint32), JSON
// header, zstd(brute-force payload of ids and vectors).
func WriteSnapshot(w io.Writer, h Header, entries []Entry) error {
	sh := snapshotHeader{Header: h, Seqs: make([]uint64, len(entries)), Paths: make([]string, len(entries))}
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	for i, e := range entries {
		if len(e.Vector) != h.Dimension {
			return fmt.Errorf("catalog: snapshot entry %q has dimension %d, want %d", e.ID, len(e.Vector), h.Dimension)
		}
		sh.Seqs[i], sh.Paths[i] = e.Seq, e.Path
		ids[i], vecs[i] = e.ID, e.Vector
	}
	header, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("catalog: snapshot header: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()
	payload := enc.EncodeAll(bruteforce.Encode(ids, vecs), nil)

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(header))))
	buf.Write(header)
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

// ReadSnapshot parses a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Header, []Entry, error) {
	prefix := make([]byte, len(snapshotMagic)+4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if string(prefix[:len(snapshotMagic)]) != snapshotMagic {
		return Header{}, nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	n := binary.LittleEndian.Uint32(prefix[len(snapshotMagic):])
	if n > maxSnapshotHeader {
		return Header{}, nil, fmt.Errorf("%w: header too large", ErrInvalidSnapshot)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, nil, fmt.Errorf("%w: header: %v", ErrInvalidSnapshot, err)
	}
	var sh snapshotHeader
	if err := json.Unmarshal(raw, &sh); err != nil {
		return Header{}, nil, fmt.Errorf("%w: header: %v", ErrInvalidSnapshot, err)
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return Header{}, nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Header{}, nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: payload: %v", ErrInvalidSnapshot, err)
	}
	ids, vecs, err := bruteforce.Decode(payload)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(ids) != len(sh.Seqs) || len(ids) != len(sh.Paths) {
		return Header{}, nil, fmt.Errorf("%w: header lists %d entries, payload %d", ErrInvalidSnapshot, len(sh.Seqs), len(ids))
	}
	entries := make([]Entry, len(ids))
	for i := range ids {
		entries[i] = Entry{Seq: sh.Seqs[i], ID: ids[i], Path: sh.Paths[i], Vector: vecs[i]}
	}
	return sh.Header, entries, nil
}
