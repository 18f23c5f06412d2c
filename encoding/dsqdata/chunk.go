// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

// Chunk is a reusable unit of decoded sequences handed from the loader and
// unpacker goroutines to consumers. Its buffers are sized once, at pipeline
// start, for the worst case (maxSeq sequences, maxPacket packets) and then
// recycled: reset clears only the bookkeeping fields, never reallocating
// smem or growing it back down, so steady-state operation does zero
// additional allocation per chunk after warm-up (Metadata aside, which
// grows geometrically the first few times a chunk sees an unusually large
// batch of metadata and then stays at its high-water mark).
type Chunk struct {
	// I0 is the index (0-based) of the first sequence in this chunk within
	// the database as a whole.
	I0 int
	// N is the number of sequences actually loaded into this chunk; it is
	// 0 for the sentinel end-of-data chunk.
	N int
	// Pn is the number of packets actually loaded into this chunk.
	Pn int

	maxSeq    int
	maxPacket int

	// smem is the shared residue/packet buffer. The loader fills its tail
	// (the last 4*Pn bytes) with raw packet bytes read off disk; the
	// unpacker then decodes those packets into residues starting from
	// smem[0], growing left to right, using UnpackChunk's in-place overlap
	// invariant.
	smem []byte

	// dsq[i] is the absolute offset within smem of sequence i's leading
	// sentinel; L[i] is sequence i's residue count (excluding sentinels).
	dsq []int
	L   []int

	// pnSeq[i] is the number of packets belonging to sequence i, filled in
	// by the loader from the index's per-sequence psq_end deltas. This
	// drives UnpackChunk's sequence boundaries directly, rather than
	// inferring them purely from sentinel-bit packets, so a zero-residue
	// sequence (which the writer packs to zero packets) is still assigned a
	// dsq/L entry instead of being invisible to the unpacker.
	pnSeq []int

	// Name, Acc, Desc, Taxid are sequence i's metadata fields, parsed by the
	// unpacker out of Metadata. Using real strings (rather than aliasing
	// byte offsets into Metadata the way smem aliases packet bytes) costs a
	// small copy per field but keeps this the one place in the pipeline
	// that isn't fighting Go's memory-safety rules for a component that
	// isn't the throughput bottleneck.
	Name, Acc, Desc []string
	Taxid           []int32

	// Metadata is the raw metadata-file bytes for this chunk's sequences,
	// grown on demand by growMetadata.
	Metadata []byte
}

// NewChunk allocates a Chunk sized to hold up to maxSeq sequences totaling
// up to maxPacket packets.
func NewChunk(maxSeq, maxPacket int) *Chunk {
	return &Chunk{
		maxSeq:    maxSeq,
		maxPacket: maxPacket,
		smem:      make([]byte, ChunkBufferSize(maxSeq, maxPacket)),
		dsq:       make([]int, maxSeq),
		L:         make([]int, maxSeq),
		pnSeq:     make([]int, maxSeq),
		Name:      make([]string, maxSeq),
		Acc:       make([]string, maxSeq),
		Desc:      make([]string, maxSeq),
		Taxid:     make([]int32, maxSeq),
	}
}

// reset clears c's bookkeeping fields and records the global index of its
// first sequence, in preparation for the loader filling it in again.
func (c *Chunk) reset(i0 int) {
	c.I0 = i0
	c.N = 0
	c.Pn = 0
}

// packetBytes returns the suffix of smem into which the loader should read
// c.Pn packets' worth of raw bytes, placed flush against the true right end
// of smem as the in-place unpack invariant requires.
func (c *Chunk) packetBytes() []byte {
	off := len(c.smem) - c.Pn*bytesPerPacket
	return c.smem[off:]
}

// growMetadata ensures c.Metadata has length n, preserving no content
// (callers always refill it from scratch) and doubling capacity so repeated
// loads converge on a stable high-water mark instead of reallocating every
// time.
func (c *Chunk) growMetadata(n int) {
	if cap(c.Metadata) < n {
		newCap := cap(c.Metadata) * 2
		if newCap < n {
			newCap = n
		}
		c.Metadata = make([]byte, newCap)
	}
	c.Metadata = c.Metadata[:n]
}

// unpack decodes c's packed residues (c.Pn packets at the tail of c.smem)
// into c.N sequences' worth of residues at the front of c.smem, filling in
// c.dsq and c.L.
func (c *Chunk) unpack() error {
	if c.N == 0 {
		return nil
	}
	off := len(c.smem) - c.Pn*bytesPerPacket
	return UnpackChunk(c.smem, off, c.Pn, c.N, c.pnSeq, c.dsq, c.L)
}

// Residues returns sequence i's decoded residue codes (excluding both
// sentinels). The returned slice is valid only until the Chunk is recycled.
func (c *Chunk) Residues(i int) []byte {
	start := c.dsq[i] + 1
	return c.smem[start : start+c.L[i]]
}
