// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dsqseq provides a small, rewindable digital sequence source for
// feeding a dsqdata writer. dsqdata itself treats the sequence-file reader
// used during database creation as an external collaborator, specified only
// by the Source interface; this package supplies one concrete
// implementation (a headered, FASTA-like text format) so the writer has
// something real to drive in tests.
package dsqseq

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bio/alphabet"
)

// Record is one digital sequence pulled from a Source. Digital holds
// residue codes in positions 0..Len-1; unlike the on-disk and in-chunk
// representations, it carries no leading or trailing sentinel.
type Record struct {
	Name, Acc, Desc string
	Taxid           int32
	Digital         []byte
}

// Source is a rewindable iterator over digital sequences, used by the
// dsqdata writer's two-pass creation algorithm (it scans the source once to
// size the output files, then rewinds and scans again to write them).
type Source interface {
	// Alphabet reports the alphabet every record is digitized against. The
	// writer records this verbatim; Source implementations must not infer it.
	Alphabet() alphabet.Alphabet

	// Rewind resets iteration to the first record.
	Rewind() error

	// Next returns the next record, or io.EOF when exhausted. The returned
	// Record is only valid until the next call to Next or Rewind.
	Next() (*Record, error)
}

// FASTASource reads records from a FASTA-like text format:
//
//	>name accession description...
//	SEQUENCE
//	SEQUENCE continuation...
//	>name2 ...
//	...
//
// Only the first whitespace-separated token after '>' is the name; the
// second token, if present, is the accession; the remainder is the
// description. Taxid is always 0 (this format has no field for it); callers
// that need taxids should implement Source directly.
type FASTASource struct {
	r     io.ReadSeeker
	alpha alphabet.Alphabet
	b     *bufio.Scanner
	rec   Record

	// pending holds one line of lookahead: bufio.Scanner has no native
	// peek, so a record's sequence loop needs somewhere to stash the next
	// header line once it reads past the end of the current record.
	pending    string
	pendingSet bool
	atEOF      bool
}

// NewFASTASource creates a FASTASource reading from r, whose records are
// digitized against alpha.
func NewFASTASource(r io.ReadSeeker, alpha alphabet.Alphabet) *FASTASource {
	s := &FASTASource{r: r, alpha: alpha}
	s.b = bufio.NewScanner(r)
	return s
}

// Alphabet implements Source.
func (s *FASTASource) Alphabet() alphabet.Alphabet { return s.alpha }

// Rewind implements Source.
func (s *FASTASource) Rewind() error {
	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		return errors.E(err, "dsqseq: rewind")
	}
	s.b = bufio.NewScanner(s.r)
	s.pending, s.pendingSet, s.atEOF = "", false, false
	return nil
}

var errNoHeader = errors.E("dsqseq: expected '>' header line")

// nextLine returns the next non-empty line, preferring a previously
// buffered lookahead line over reading from the scanner.
func (s *FASTASource) nextLine() (string, bool) {
	if s.pendingSet {
		s.pendingSet = false
		return s.pending, true
	}
	for !s.atEOF {
		if !s.b.Scan() {
			s.atEOF = true
			break
		}
		if line := s.b.Text(); line != "" {
			return line, true
		}
	}
	return "", false
}

// Next implements Source.
func (s *FASTASource) Next() (*Record, error) {
	header, ok := s.nextLine()
	if !ok {
		if err := s.b.Err(); err != nil {
			return nil, errors.E(err, "dsqseq: read")
		}
		return nil, io.EOF
	}
	if header[0] != '>' {
		return nil, errNoHeader
	}
	fields := strings.Fields(header[1:])
	s.rec = Record{Digital: s.rec.Digital[:0]}
	if len(fields) > 0 {
		s.rec.Name = fields[0]
	}
	if len(fields) > 1 {
		s.rec.Acc = fields[1]
	}
	if len(fields) > 2 {
		s.rec.Desc = strings.Join(fields[2:], " ")
	}

	for {
		line, ok := s.nextLine()
		if !ok {
			break
		}
		if line[0] == '>' {
			s.pending, s.pendingSet = line, true
			break
		}
		for i := 0; i < len(line); i++ {
			if line[i] == ' ' || line[i] == '\t' {
				continue
			}
			code, digOK := s.alpha.Digitize(line[i])
			if !digOK {
				return nil, errors.E(fmt.Sprintf("dsqseq: invalid residue %q in %s", line[i], s.rec.Name))
			}
			s.rec.Digital = append(s.rec.Digital, code)
		}
	}
	return &s.rec, nil
}
