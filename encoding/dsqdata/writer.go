// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/bio/alphabet"
	"github.com/grailbio/bio/dsqseq"
)

// Create writes a new dsqdata database at the four files sharing base path
// (base, base.dsqi, base.dsqm, base.dsqs), reading every record out of src
// twice: once to size the header fields, once to actually pack and write.
// tagSrc supplies the random tag stamped into all three binary files; pass
// nil to use DefaultTagSource.
func Create(base string, src dsqseq.Source, tagSrc TagSource) (err error) {
	if tagSrc == nil {
		tagSrc = DefaultTagSource
	}
	alpha := src.Alphabet()
	if alphabet.ForType(alpha.Kind()) == nil {
		return errors.E(fmt.Sprintf("dsqdata: create: alphabet kind %v is not one of protein, DNA, RNA", alpha.Kind()))
	}

	ctx := vcontext.Background()
	var nseq, nres uint64
	var maxName, maxAcc, maxDesc, maxSeqLen int

	if err := src.Rewind(); err != nil {
		return errors.E(err, "dsqdata: create", base)
	}
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.E(err, "dsqdata: create: first pass", base)
		}
		for i, code := range rec.Digital {
			if code >= alphabet.Sentinel {
				return errors.E(fmt.Sprintf(
					"dsqdata: create: sequence %d (%s) residue %d has digital code %d, which a 5-bit packet cannot carry (must be < %d)",
					nseq, rec.Name, i, code, alphabet.Sentinel))
			}
		}
		nseq++
		nres += uint64(len(rec.Digital))
		maxName = max(maxName, len(rec.Name))
		maxAcc = max(maxAcc, len(rec.Acc))
		maxDesc = max(maxDesc, len(rec.Desc))
		maxSeqLen = max(maxSeqLen, len(rec.Digital))
	}

	tag := tagSrc.Uint32()

	stubOut, err := file.Create(ctx, stubPath(base))
	if err != nil {
		return errors.E(err, "dsqdata: create stub", base)
	}
	defer file.CloseAndReport(ctx, stubOut, &err)
	if err := writeStub(stubOut.Writer(ctx), tag, alpha.Kind()); err != nil {
		return err
	}

	idxOut, err := file.Create(ctx, indexPath(base))
	if err != nil {
		return errors.E(err, "dsqdata: create index file", base)
	}
	defer file.CloseAndReport(ctx, idxOut, &err)
	idxW := idxOut.Writer(ctx)
	hdr := indexHeader{
		Magic:      magic,
		Tag:        tag,
		AlphaType:  uint32(alpha.Kind()),
		MaxNameLen: uint32(maxName),
		MaxAccLen:  uint32(maxAcc),
		MaxDescLen: uint32(maxDesc),
		MaxSeqLen:  uint64(maxSeqLen),
		NSeq:       nseq,
		NRes:       nres,
	}
	if err := hdr.writeTo(idxW); err != nil {
		return err
	}

	metaOut, err := file.Create(ctx, metadataPath(base))
	if err != nil {
		return errors.E(err, "dsqdata: create metadata file", base)
	}
	defer file.CloseAndReport(ctx, metaOut, &err)
	metaW := metaOut.Writer(ctx)
	if err := (&sideHeader{Magic: magic, Tag: tag}).writeTo(metaW); err != nil {
		return err
	}

	seqOut, err := file.Create(ctx, sequencePath(base))
	if err != nil {
		return errors.E(err, "dsqdata: create sequence file", base)
	}
	defer file.CloseAndReport(ctx, seqOut, &err)
	seqW := seqOut.Writer(ctx)
	if err := (&sideHeader{Magic: magic, Tag: tag}).writeTo(seqW); err != nil {
		return err
	}

	if err := src.Rewind(); err != nil {
		return errors.E(err, "dsqdata: create: second pass rewind", base)
	}

	var scratch []byte
	var metaBuf []byte
	var psqEnd, metaEndCursor int64 = -1, -1
	var i int64
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.E(err, "dsqdata: create: second pass", base)
		}

		scratch = append(scratch[:0], rec.Digital...)
		var packed []byte
		if alpha.Kind().IsNucleic() {
			packed = PackNucleic(scratch)
		} else {
			packed = PackProtein(scratch)
		}
		npackets := len(packed) / bytesPerPacket
		if npackets > MaxPacketPerChunk {
			return errors.E(fmt.Sprintf(
				"dsqdata: create: sequence %d (%s) packs to %d packets, exceeding the %d-packet-per-chunk limit; no reader chunk could ever hold it",
				i, rec.Name, npackets, MaxPacketPerChunk))
		}
		if _, err := seqW.Write(packed); err != nil {
			return errors.E(err, "dsqdata: write sequence data", base)
		}
		psqEnd += int64(npackets)

		metaBuf = metaBuf[:0]
		metaBuf = append(metaBuf, rec.Name...)
		metaBuf = append(metaBuf, 0)
		metaBuf = append(metaBuf, rec.Acc...)
		metaBuf = append(metaBuf, 0)
		metaBuf = append(metaBuf, rec.Desc...)
		metaBuf = append(metaBuf, 0)
		metaBuf = appendInt32LE(metaBuf, rec.Taxid)
		if _, err := metaW.Write(metaBuf); err != nil {
			return errors.E(err, "dsqdata: write metadata", base)
		}
		metaEndCursor += int64(len(metaBuf))

		rec2 := indexRecord{PsqEnd: psqEnd, MetadataEnd: metaEndCursor}
		if err := rec2.writeTo(idxW); err != nil {
			return err
		}
		i++
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func appendInt32LE(b []byte, v int32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
