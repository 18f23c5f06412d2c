// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"encoding/binary"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bio/alphabet"
)

// A packet is a 32-bit word. Bit 31 is the sentinel bit (set on the last
// packet of a sequence); bit 30 is the kind bit (0 = 2-bit/15-residue, 1 =
// 5-bit/6-residue); the remaining 30 bits hold residue codes, packed from
// the high end down.
const (
	packetSentinelBit uint32 = 1 << 31
	packetKindBit     uint32 = 1 << 30

	mask2bit uint32 = 0x3
	mask5bit uint32 = 0x1f

	// residuesPerPacket5 and residuesPerPacket2 are the number of residues a
	// full packet of each kind carries.
	residuesPerPacket5 = 6
	residuesPerPacket2 = 15

	bytesPerPacket = 4
)

// PackProtein 5-bit packs digital[0:len(digital)] (protein residue codes, no
// sentinels), six residues per packet, and returns the packed bytes. It
// overwrites digital's own backing array in place: the returned slice
// aliases digital, and callers must not read digital afterward. This is
// always safe because a packet's 4 output bytes are produced only after its
// 6 input residues have been read, and the output cursor never catches up
// with the input cursor (4 < 6 per packet). When digital is shorter than its
// packed form (1-3 or 7 residues), it is first extended with append, so the
// returned slice may then live in a new backing array.
//
// Every residue code in digital must be strictly less than alphabet.Sentinel
// (31): a 5-bit field only has room for codes 0-30, with 31 reserved as the
// in-packet filler/terminator. Create validates this precondition against
// every record before packing; callers bypassing Create must do the same.
func PackProtein(digital []byte) []byte {
	n := len(digital)
	npackets := 0
	if n > 0 {
		npackets = (n + residuesPerPacket5 - 1) / residuesPerPacket5
	}
	if need := npackets * bytesPerPacket; need > len(digital) {
		digital = append(digital, make([]byte, need-len(digital))...)
	}
	for p := 0; p < npackets; p++ {
		word := packetKindBit
		for i := 0; i < residuesPerPacket5; i++ {
			pos := p*residuesPerPacket5 + i
			code := uint32(alphabet.Sentinel)
			if pos < n {
				code = uint32(digital[pos])
			}
			word |= code << uint(25-5*i)
		}
		if p == npackets-1 {
			word |= packetSentinelBit
		}
		binary.LittleEndian.PutUint32(digital[p*bytesPerPacket:], word)
	}
	return digital[:npackets*bytesPerPacket]
}

// PackNucleic packs digital[0:len(digital)] (DNA/RNA residue codes) using
// the mixed 2-bit/5-bit scheme: whenever at least 15 residues remain and all
// of the next 15 are canonical (code <= alphabet.MaxCanonical), it emits one
// full 2-bit packet; otherwise it realigns by emitting one 5-bit packet of
// up to 6 residues. Like PackProtein, it packs in place into digital's own
// backing array and returns the aliased prefix; this remains safe because a
// non-terminal packet's input span is always at least 6 residues (>= the 4
// bytes it produces), so the write cursor never overtakes the read cursor.
// As in PackProtein, digital is extended with append when a packet would
// end past len(digital), which happens only for very short inputs.
//
// As with PackProtein, every residue code must be strictly less than
// alphabet.Sentinel; Create enforces this before packing.
func PackNucleic(digital []byte) []byte {
	n := len(digital)
	pos := 0
	outPos := 0
	for pos < n {
		remaining := n - pos
		use2bit := remaining >= residuesPerPacket2 && allCanonical(digital[pos:pos+residuesPerPacket2])
		var word uint32
		var consumed int
		if use2bit {
			for i := 0; i < residuesPerPacket2; i++ {
				word |= uint32(digital[pos+i]) << uint(28-2*i)
			}
			consumed = residuesPerPacket2
		} else {
			word = packetKindBit
			consumed = remaining
			if consumed > residuesPerPacket5 {
				consumed = residuesPerPacket5
			}
			for i := 0; i < residuesPerPacket5; i++ {
				code := uint32(alphabet.Sentinel)
				if i < consumed {
					code = uint32(digital[pos+i])
				}
				word |= code << uint(25-5*i)
			}
		}
		pos += consumed
		if pos == n {
			word |= packetSentinelBit
		}
		if need := outPos + bytesPerPacket; need > len(digital) {
			digital = append(digital, make([]byte, need-len(digital))...)
		}
		binary.LittleEndian.PutUint32(digital[outPos:], word)
		outPos += bytesPerPacket
	}
	return digital[:outPos]
}

func allCanonical(codes []byte) bool {
	for _, c := range codes {
		if c > alphabet.MaxCanonical {
			return false
		}
	}
	return true
}

var errTruncatedPackets = errors.E("dsqdata: packet stream ended before expected number of sequences were terminated")
var errSentinelMismatch = errors.E("dsqdata: packet sentinel bit does not match the sequence boundary recorded in the index")

// ChunkBufferSize returns the number of bytes a shared unpack buffer must
// have to safely hold maxPacket packets' worth of decoded residues (plus one
// leading and maxSeq trailing/shared sentinels) without the unpacked region
// ever catching up with the still-unread tail of the packed region. It uses
// the looser 2-bit expansion bound (15 residues/packet) unconditionally,
// which is always a safe superset of the 5-bit bound (6 residues/packet).
func ChunkBufferSize(maxSeq, maxPacket int) int {
	return residuesPerPacket2*maxPacket + maxSeq + 1
}

// UnpackChunk decodes the pn packets stored at smem[packetOff:packetOff+4*pn]
// (little-endian, 4 bytes each) into n sequences, writing residues into
// smem[0:] from the front: a leading sentinel, then each sequence's
// residues, then a trailing sentinel that doubles as the next sequence's
// leading sentinel. starts[i] receives the absolute offset of sequence i's
// leading sentinel; lengths[i] receives its residue count (excluding both
// sentinels).
//
// Sequence boundaries are driven by packetCounts[0:n], the number of packets
// belonging to each sequence (taken from the index's per-sequence psq_end
// deltas), not solely by scanning for sentinel-bit packets: a sentinel-bit
// packet can only mark the end of a sequence that has at least one packet,
// so an empty sequence (packetCounts[i] == 0, as the writer produces for a
// zero-residue record) would never be observed by a scan that waits for a
// sentinel bit. Driving the loop from packetCounts instead lets such a
// sequence receive dsq/L bookkeeping (L[i] == 0) while consuming zero
// packets. The packet actually read at the end of a non-empty sequence is
// still required to carry the sentinel bit (and every other packet in that
// sequence is required not to); a mismatch between the index's bookkeeping
// and the packet stream's own sentinel bits is a format error.
//
// This is safe to alias against the very buffer the packets were read from
// (as ChunkBufferSize guarantees smem to be, with the packed region placed
// at its true right end): the packet read cursor only ever moves to higher
// offsets than the residue write cursor has reached, because decoding one
// packet advances the write cursor by at most 15 bytes while packetOff
// itself never decreases.
func UnpackChunk(smem []byte, packetOff, pn, n int, packetCounts, starts, lengths []int) error {
	if n == 0 {
		return nil
	}
	opos := 0
	smem[opos] = alphabet.Sentinel
	opos++
	ppos := 0
	for seq := 0; seq < n; seq++ {
		start := opos - 1
		starts[seq] = start

		npk := packetCounts[seq]
		if ppos+npk > pn {
			return errTruncatedPackets
		}
		for i := 0; i < npk; i++ {
			word := binary.LittleEndian.Uint32(smem[packetOff+ppos*bytesPerPacket:])
			ppos++
			isLast := i == npk-1
			if (word&packetSentinelBit != 0) != isLast {
				return errSentinelMismatch
			}
			if word&packetKindBit == 0 {
				for j := 0; j < residuesPerPacket2; j++ {
					smem[opos] = byte((word >> uint(28-2*j)) & mask2bit)
					opos++
				}
			} else {
				for j := 0; j < residuesPerPacket5; j++ {
					code := byte((word >> uint(25-5*j)) & mask5bit)
					if isLast && code == alphabet.Sentinel {
						break
					}
					smem[opos] = code
					opos++
				}
			}
		}
		lengths[seq] = opos - start - 1
		smem[opos] = alphabet.Sentinel
		opos++
	}
	if ppos != pn {
		return errTruncatedPackets
	}
	return nil
}
