// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"io"
	"sort"

	"github.com/grailbio/base/log"
)

// loader is the pipeline's sole disk-reading goroutine. It streams index
// records into a small in-memory window, binary-searches that window for
// the largest run of sequences whose packets fit within MaxPacketPerChunk
// (and whose count fits within MaxSeqPerChunk), and streams exactly that
// many packets and metadata bytes into a freshly recycled Chunk before
// handing it to the unpacker. When the index is exhausted it hands off one
// final chunk with N == 0, the end-of-data sentinel, and stops.
type loader struct {
	idxR  io.Reader
	metaR io.Reader
	seqR  io.Reader

	nseqTotal uint64
	nextSeq   uint64

	// window holds index records for sequences [nextSeq, nextSeq+len(window))
	// that have been read off disk but not yet handed to a chunk.
	window    []indexRecord
	windowRead uint64 // total index records read from idxR so far

	prevPsqEnd  int64
	prevMetaEnd int64

	out  *chunkMailbox
	free *recyclingStack
}

func newLoader(idxR, metaR, seqR io.Reader, nseqTotal uint64, out *chunkMailbox, free *recyclingStack) *loader {
	return &loader{
		idxR: idxR, metaR: metaR, seqR: seqR,
		nseqTotal:   nseqTotal,
		prevPsqEnd:  -1,
		prevMetaEnd: -1,
		out:         out,
		free:        free,
	}
}

// run drives the loader until end-of-data, then returns. It is meant to run
// in its own goroutine; all fatal errors (a truncated or corrupt database)
// are reported via log.Panicf, since there is no caller left to hand an
// error to once the pipeline has started.
func (ld *loader) run() {
	for {
		chunk := ld.free.pop()
		done := ld.fill(chunk)
		ld.out.put(chunk)
		if done {
			return
		}
	}
}

// ensureWindow reads additional index records until the window holds at
// least want records or the index is exhausted.
func (ld *loader) ensureWindow(want int) error {
	for len(ld.window) < want && ld.windowRead < ld.nseqTotal {
		rec, err := readIndexRecord(ld.idxR)
		if err != nil {
			return err
		}
		ld.window = append(ld.window, rec)
		ld.windowRead++
	}
	return nil
}

// fill loads the next chunk's worth of sequences into chunk and reports
// whether this was the end-of-data sentinel (chunk.N == 0).
func (ld *loader) fill(chunk *Chunk) bool {
	chunk.reset(int(ld.nextSeq))

	remaining := ld.nseqTotal - ld.nextSeq
	if remaining == 0 {
		return true
	}

	want := MaxSeqPerChunk
	if uint64(want) > remaining {
		want = int(remaining)
	}
	if err := ld.ensureWindow(want); err != nil {
		log.Panicf("dsqdata: loader: reading index: %v", err)
	}

	// Largest k such that window[k-1].PsqEnd - prevPsqEnd <= MaxPacketPerChunk.
	k := sort.Search(len(ld.window), func(i int) bool {
		return ld.window[i].PsqEnd-ld.prevPsqEnd > int64(MaxPacketPerChunk)
	})
	if k == 0 {
		log.Panicf("dsqdata: loader: sequence %d alone exceeds the %d-packet chunk budget; database is malformed", ld.nextSeq, MaxPacketPerChunk)
	}

	last := ld.window[k-1]
	pn := int(last.PsqEnd - ld.prevPsqEnd)
	metaBytes := int(last.MetadataEnd - ld.prevMetaEnd)

	chunk.N = k
	chunk.Pn = pn
	if pn > chunk.maxPacket {
		log.Panicf("dsqdata: loader: chunk needs %d packets, exceeding its %d-packet capacity", pn, chunk.maxPacket)
	}

	// Record each sequence's own packet count (its psq_end delta from the
	// previous sequence, which may be zero for an empty sequence) so the
	// unpacker can locate sequence boundaries without relying solely on
	// scanning for sentinel-bit packets.
	prev := ld.prevPsqEnd
	for i := 0; i < k; i++ {
		chunk.pnSeq[i] = int(ld.window[i].PsqEnd - prev)
		prev = ld.window[i].PsqEnd
	}

	if _, err := io.ReadFull(ld.seqR, chunk.packetBytes()); err != nil {
		log.Panicf("dsqdata: loader: reading sequence data: %v", err)
	}
	chunk.growMetadata(metaBytes)
	if _, err := io.ReadFull(ld.metaR, chunk.Metadata); err != nil {
		log.Panicf("dsqdata: loader: reading metadata: %v", err)
	}

	ld.window = ld.window[k:]
	ld.prevPsqEnd = last.PsqEnd
	ld.prevMetaEnd = last.MetadataEnd
	ld.nextSeq += uint64(k)

	return false
}
