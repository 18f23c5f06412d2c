// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

// Error handling throughout this package follows the convention used across
// grailbio/base: operations that a caller can sensibly recover from (a
// missing file, a malformed header, a tag mismatch between the three
// on-disk files) return an error built with errors.E, wrapping the
// underlying cause and the offending path. errors.E(io.EOF, ...) is never
// used for end-of-data; Read instead returns the bare io.EOF sentinel so
// callers can use the standard `err == io.EOF` idiom.
//
// Failures discovered deep inside the loader or unpacker goroutines (a
// corrupt packet stream, a metadata record with no null terminator) cannot
// be returned through a normal call stack, since those goroutines
// communicate with consumers only via Chunks. Such failures are fatal: they
// indicate the on-disk files are corrupt, not that the caller did anything
// wrong, so this package reports them with log.Panicf/log.Fatalf rather
// than inventing a side channel to plumb an error back to Read.
