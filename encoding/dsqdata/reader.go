// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/bio/alphabet"
)

// Reader drives the read pipeline for one open database: a loader goroutine
// streaming index/metadata/sequence bytes off disk, an unpacker goroutine
// decoding those bytes into Chunks, and the synchronization (two single-slot
// mailboxes plus a recycling stack) that connects them to a pool of
// consumer goroutines calling Read and Recycle.
//
// A Reader is safe for concurrent use by multiple consumer goroutines, as
// documented on Read and Recycle; Open and Close are not meant to be called
// concurrently with themselves or with each other.
type Reader struct {
	Alphabet alphabet.Alphabet

	idxFile, metaFile, seqFile file.File

	loaderOut, unpackerOut *chunkMailbox
	free                   *recyclingStack

	ld *loader
	up *unpacker
	wg sync.WaitGroup

	readMu  sync.Mutex
	atEOF   bool
	nchunks int

	// err accumulates the first error Open encountered, so a half-opened
	// Reader can still answer Err() (and so Close, called on such a shell,
	// has something sensible to report too), matching the
	// errorreporter.T/err.Set pattern encoding/pam's Reader uses.
	err errors.Once
}

// Open opens the four files making up the database at base (base,
// base.dsqi, base.dsqm, base.dsqs), cross-validates their magic numbers and
// tags, and starts the loader and unpacker goroutines feeding nconsumers
// worth of chunk capacity. If alpha is non-nil, Open fails with an incompat
// error unless the database's recorded alphabet kind matches it; if alpha
// is nil, Open reports back whichever stock alphabet matches the database's
// recorded kind.
//
// If Open returns a non-nil error, the returned *Reader is a shell that
// only holds whatever files were already opened; its Err() reports the same
// error, and callers may still call Close on it to release those files, but
// must not call Read.
func Open(base string, nconsumers int, alpha alphabet.Alphabet) (*Reader, error) {
	if nconsumers < 1 {
		nconsumers = DefaultConsumers
	}
	ctx := vcontext.Background()
	r := &Reader{}

	var err error
	r.idxFile, err = file.Open(ctx, indexPath(base))
	if err != nil {
		r.err.Set(errors.E(err, "dsqdata: open index file", base))
		return r, r.err.Err()
	}
	idxHdr, err := readIndexHeader(r.idxFile.Reader(ctx))
	if err != nil {
		r.err.Set(err)
		return r, r.err.Err()
	}

	r.metaFile, err = file.Open(ctx, metadataPath(base))
	if err != nil {
		r.err.Set(errors.E(err, "dsqdata: open metadata file", base))
		return r, r.err.Err()
	}
	metaHdr, err := readSideHeader(r.metaFile.Reader(ctx), "metadata")
	if err != nil {
		r.err.Set(err)
		return r, r.err.Err()
	}
	if metaHdr.Tag != idxHdr.Tag {
		r.err.Set(errors.E(fmt.Sprintf(
			"dsqdata: metadata file tag %08x does not match index file tag %08x", metaHdr.Tag, idxHdr.Tag)))
		return r, r.err.Err()
	}

	r.seqFile, err = file.Open(ctx, sequencePath(base))
	if err != nil {
		r.err.Set(errors.E(err, "dsqdata: open sequence file", base))
		return r, r.err.Err()
	}
	seqHdr, err := readSideHeader(r.seqFile.Reader(ctx), "sequence")
	if err != nil {
		r.err.Set(err)
		return r, r.err.Err()
	}
	if seqHdr.Tag != idxHdr.Tag {
		r.err.Set(errors.E(fmt.Sprintf(
			"dsqdata: sequence file tag %08x does not match index file tag %08x", seqHdr.Tag, idxHdr.Tag)))
		return r, r.err.Err()
	}

	dbAlpha := alphabet.ForType(alphabet.Type(idxHdr.AlphaType))
	if dbAlpha == nil {
		r.err.Set(errors.E(fmt.Sprintf("dsqdata: index file records unrecognized alphabet type %d", idxHdr.AlphaType)))
		return r, r.err.Err()
	}
	if alpha != nil && alpha.Kind() != dbAlpha.Kind() {
		r.err.Set(errors.E(fmt.Sprintf(
			"dsqdata: database alphabet %v is incompatible with requested alphabet %v", dbAlpha.Kind(), alpha.Kind())))
		return r, r.err.Err()
	}
	r.Alphabet = dbAlpha

	r.loaderOut = newChunkMailbox()
	r.unpackerOut = newChunkMailbox()

	// Pre-allocate the pipeline's entire chunk budget (nconsumers+2: one in
	// the loader's hands, one in the unpacker's, the rest available to
	// consumers and in transit) and seed the recycling stack with all of
	// them; the loader only ever pops from this stack, so its allocation
	// cap is enforced simply by never creating more than this many Chunks.
	maxSeq := MaxSeqPerChunk
	if uint64(maxSeq) > idxHdr.NSeq && idxHdr.NSeq > 0 {
		maxSeq = int(idxHdr.NSeq)
	}
	nchunks := nconsumers + 2
	chunks := make([]*Chunk, nchunks)
	for i := range chunks {
		chunks[i] = NewChunk(maxSeq, MaxPacketPerChunk)
	}
	r.free = newRecyclingStack(chunks...)
	r.nchunks = nchunks

	r.ld = newLoader(r.idxFile.Reader(ctx), r.metaFile.Reader(ctx), r.seqFile.Reader(ctx), idxHdr.NSeq, r.loaderOut, r.free)
	r.up = newUnpacker(r.loaderOut, r.unpackerOut)

	r.wg.Add(2)
	go func() { defer r.wg.Done(); r.ld.run() }()
	go func() { defer r.wg.Done(); r.up.run() }()

	return r, nil
}

// Err returns the error Open encountered, if any. It is nil for a
// successfully opened Reader and never returns io.EOF (end-of-data from
// Read is not an error).
func (r *Reader) Err() error {
	return r.err.Err()
}

// Read returns the next chunk of sequences, or io.EOF once every sequence in
// the database has been delivered. It is safe to call concurrently from
// multiple consumer goroutines; each call that doesn't return EOF receives
// a distinct Chunk, and the first call (across all consumers) to observe
// end-of-data sets a sticky flag so every later call, concurrent or not,
// returns io.EOF immediately without touching the pipeline.
func (r *Reader) Read() (*Chunk, error) {
	r.readMu.Lock()
	defer r.readMu.Unlock()
	if r.atEOF {
		return nil, io.EOF
	}
	chunk := r.unpackerOut.take()
	if chunk.N == 0 {
		r.atEOF = true
		r.free.push(chunk)
		return nil, io.EOF
	}
	return chunk, nil
}

// Recycle returns chunk to the pool the loader draws from. It does not
// block and must be called exactly once per Chunk returned by Read, once
// the caller is done reading its contents.
func (r *Reader) Recycle(chunk *Chunk) {
	r.free.push(chunk)
}

// Close joins the loader and unpacker goroutines and closes the underlying
// files. Its precondition, not verified here, is that every Chunk handed
// out by Read has already been recycled, including the terminal N==0 chunk
// that Read itself recycles when it first observes end-of-data: both
// worker goroutines exit on their own once that sentinel has passed
// through them, so by the time a caller's Read/Recycle loop has run to
// completion there is nothing left for Close to wait on but the goroutine
// exits themselves.
//
// Close is idempotent-safe on a Reader returned by a failed Open: it
// releases only the files that were actually opened.
func (r *Reader) Close() error {
	if r.ld != nil {
		r.wg.Wait()
	}
	return r.closeFiles(vcontext.Background())
}

func (r *Reader) closeFiles(ctx context.Context) error {
	var errs errors.Once
	for _, f := range []file.File{r.idxFile, r.metaFile, r.seqFile} {
		if f == nil {
			continue
		}
		errs.Set(f.Close(ctx))
	}
	return errs.Err()
}
