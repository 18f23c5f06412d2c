// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"github.com/grailbio/base/log"
)

// unpacker is the pipeline's sole decode goroutine. For every chunk handed
// to it by the loader, it decodes the packed residue data (via
// Chunk.unpack) and parses the raw metadata bytes into per-sequence
// Name/Acc/Desc/Taxid fields, then forwards the chunk to the consumer pool.
// A corrupt packet stream or a metadata record missing a null terminator
// indicates the database itself is broken, not a caller mistake, so both
// are reported with log.Panicf rather than threaded back through a return
// value.
type unpacker struct {
	in  *chunkMailbox
	out *chunkMailbox
}

func newUnpacker(in, out *chunkMailbox) *unpacker {
	return &unpacker{in: in, out: out}
}

func (u *unpacker) run() {
	for {
		chunk := u.in.take()
		if chunk.N > 0 {
			if err := chunk.unpack(); err != nil {
				log.Panicf("dsqdata: unpacker: %v", err)
			}
			parseMetadata(chunk)
		}
		u.out.put(chunk)
		if chunk.N == 0 {
			return
		}
	}
}

// parseMetadata walks chunk.Metadata, splitting it into chunk.N groups of
// (null-terminated name, null-terminated accession, null-terminated
// description, 4-byte little-endian taxid), in the same order the writer
// emitted them.
func parseMetadata(chunk *Chunk) {
	buf := chunk.Metadata
	pos := 0
	nextField := func() string {
		start := pos
		for pos < len(buf) && buf[pos] != 0 {
			pos++
		}
		if pos >= len(buf) {
			log.Panicf("dsqdata: unpacker: metadata field missing null terminator at offset %d", start)
		}
		s := string(buf[start:pos])
		pos++ // skip the null
		return s
	}
	for i := 0; i < chunk.N; i++ {
		chunk.Name[i] = nextField()
		chunk.Acc[i] = nextField()
		chunk.Desc[i] = nextField()
		if pos+4 > len(buf) {
			log.Panicf("dsqdata: unpacker: metadata truncated before taxid field for sequence %d", chunk.I0+i)
		}
		chunk.Taxid[i] = int32(uint32(buf[pos]) | uint32(buf[pos+1])<<8 | uint32(buf[pos+2])<<16 | uint32(buf[pos+3])<<24)
		pos += 4
	}
}
