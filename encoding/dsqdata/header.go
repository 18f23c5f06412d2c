// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bio/alphabet"
)

// Magic identifies a dsqdata binary file and its byte order. All three
// binary files of a database (index, metadata, sequence) carry the same
// magic number; a reader that sees magicSwapped instead knows the files
// were written on a machine of the other endianness and refuses them,
// since this implementation does not support transparent byte-swapping.
const (
	magic uint32 = 0x647371ef // "dsq" + format version, arbitrary but fixed

	stubVersion = 1
)

// magicSwapped is what a reader sees in the magic field when the file was
// written on a machine of the opposite byte order. It is derived from magic
// rather than hand-written, so it can never drift out of sync.
var magicSwapped = byteSwap32(magic)

func byteSwap32(v uint32) uint32 {
	return v<<24 | (v&0xff00)<<8 | (v&0xff0000)>>8 | v>>24
}

// indexHeader is the fixed-size header at the start of the .dsqi file.
type indexHeader struct {
	Magic      uint32
	Tag        uint32
	AlphaType  uint32
	Flags      uint32
	MaxNameLen uint32
	MaxAccLen  uint32
	MaxDescLen uint32
	MaxSeqLen  uint64
	NSeq       uint64
	NRes       uint64
}

func (h *indexHeader) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return errors.E(err, "dsqdata: write index header")
	}
	return nil
}

func readIndexHeader(r io.Reader) (indexHeader, error) {
	var h indexHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, errors.E(err, "dsqdata: read index header")
	}
	if h.Magic == magicSwapped {
		return h, errors.E("dsqdata: index file was written with the opposite byte order; byte-swapping on read is not supported")
	}
	if h.Magic != magic {
		return h, errors.E("dsqdata: index file does not start with the dsqdata magic number")
	}
	return h, nil
}

// indexRecord is one fixed-size entry in the .dsqi file, following the
// header. Sequence i's packets occupy packet indices
// [idx[i-1].PsqEnd+1, idx[i].PsqEnd] of the sequence file (idx[-1].PsqEnd is
// taken to be -1), and its metadata bytes occupy
// [idx[i-1].MetadataEnd+1, idx[i].MetadataEnd] of the metadata file
// (idx[-1].MetadataEnd is taken to be -1). A record with PsqEnd equal to the
// previous record's PsqEnd packed to zero packets (an empty sequence).
type indexRecord struct {
	PsqEnd      int64
	MetadataEnd int64
}

func (r *indexRecord) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, r); err != nil {
		return errors.E(err, "dsqdata: write index record")
	}
	return nil
}

func readIndexRecord(r io.Reader) (indexRecord, error) {
	var rec indexRecord
	if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
		return rec, errors.E(err, "dsqdata: read index record")
	}
	return rec, nil
}

const indexRecordSize = 16 // two int64 fields

// sideHeader is the fixed-size header shared by the .dsqm and .dsqs files:
// just enough to cross-validate against the index header.
type sideHeader struct {
	Magic uint32
	Tag   uint32
}

func (h *sideHeader) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return errors.E(err, "dsqdata: write file header")
	}
	return nil
}

func readSideHeader(r io.Reader, kind string) (sideHeader, error) {
	var h sideHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, errors.E(err, fmt.Sprintf("dsqdata: read %s header", kind))
	}
	if h.Magic == magicSwapped {
		return h, errors.E(fmt.Sprintf("dsqdata: %s file was written with the opposite byte order; byte-swapping on read is not supported", kind))
	}
	if h.Magic != magic {
		return h, errors.E(fmt.Sprintf("dsqdata: %s file does not start with the dsqdata magic number", kind))
	}
	return h, nil
}

// writeStub writes the human-readable stub file's first line, formally
// parsed by readStubTag, plus one free-form line recording the alphabet for
// a human reading the file with `head`. Readers never parse anything past
// the first line.
func writeStub(w io.Writer, tag uint32, alpha alphabet.Type) error {
	if _, err := fmt.Fprintf(w, "Easel dsqdata v%d x%d\n# alphabet: %s\n", stubVersion, tag, alpha); err != nil {
		return errors.E(err, "dsqdata: write stub")
	}
	return nil
}

// readStubTag extracts the tag from a stub file, for diagnostic use (Open
// does not require the stub to be present or well formed; it trusts the
// binary headers).
func readStubTag(r io.Reader) (uint32, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return 0, errors.E("dsqdata: empty stub file")
	}
	var version int
	var tag uint32
	if _, err := fmt.Sscanf(sc.Text(), "Easel dsqdata v%d x%d", &version, &tag); err != nil {
		return 0, errors.E(err, "dsqdata: malformed stub file")
	}
	return tag, nil
}
