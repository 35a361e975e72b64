// Package bibcache keeps parsed database files between runs, along with a
// history of past runs, in a sqlite database.
package bibcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bibtex/bib"
)

// formatVersion changes whenever the snapshot encoding does; stored
// snapshots of another version are ignored.
const formatVersion = 2

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bibcache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type envelope struct {
	Version  int           `cbor:"1,keyasint"`
	Snapshot *bib.Snapshot `cbor:"2,keyasint"`
}

// MarshalSnapshot serializes a snapshot to canonical CBOR.
func MarshalSnapshot(s *bib.Snapshot) ([]byte, error) {
	return encMode.Marshal(envelope{Version: formatVersion, Snapshot: s})
}

// UnmarshalSnapshot deserializes a snapshot. Data written by another
// format version yields nil and no error.
func UnmarshalSnapshot(data []byte) (*bib.Snapshot, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bibcache: unmarshal snapshot: %w", err)
	}
	if env.Version != formatVersion {
		return nil, nil
	}
	return env.Snapshot, nil
}

// Key identifies a parse of one file: its name, its bytes, and the macros
// defined when scanning started.
func Key(name string, data []byte, env []bib.MacroDef) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField([]byte(name))
	writeField(data)
	for _, m := range env {
		writeField([]byte(m.Name))
		writeField([]byte(m.Value))
	}
	return hex.EncodeToString(h.Sum(nil))
}
