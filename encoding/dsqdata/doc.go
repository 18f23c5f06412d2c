// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dsqdata implements a high-throughput reader and writer for a
// predigitized, bit-packed binary database of biological sequences
// (protein, DNA, or RNA). The format trades write-once effort for random
// access, parallel chunking, and a compact on-disk representation: it is
// meant to be read once per analysis run at the highest rate a disk and a
// pool of consumer goroutines can sustain.
//
// A database is four files sharing one base name: a human-readable stub, a
// fixed-header index file (base.dsqi) of per-sequence offset pairs, a
// metadata file (base.dsqm) of concatenated name/accession/description/
// taxid records, and a sequence file (base.dsqs) of concatenated bit-packed
// packet streams. Open validates that all three binary files share the same
// magic number and the same per-database random tag before handing back a
// Reader.
//
// Reading drives two internal goroutines (a loader that streams index,
// metadata, and packed bytes off disk into reusable Chunks, and an unpacker
// that decodes packets and parses metadata) connected to a pool of consumer
// goroutines by two single-slot mailboxes and a LIFO recycling stack, giving
// bounded memory use (roughly nconsumers+2 chunks in flight) and precise
// backpressure.
package dsqdata
