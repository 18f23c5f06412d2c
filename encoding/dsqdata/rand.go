// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/grailbio/base/log"
)

// TagSource produces the random 32-bit tags a Writer stamps into a new
// database's three binary files, so a Reader can detect a mismatched file
// set (e.g. an index file copied next to the wrong metadata file).
type TagSource interface {
	Uint32() uint32
}

type cryptoTagSource struct{}

// Uint32 implements TagSource using the operating system's CSPRNG. The tag
// only needs to be unlikely to collide across independently-created
// databases, not cryptographically unpredictable; crypto/rand is used
// anyway because it requires no seeding and grailbio/base code generally
// avoids math/rand's global, mutex-guarded seed state.
func (cryptoTagSource) Uint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Panicf("dsqdata: reading random tag: %v", err)
	}
	return binary.LittleEndian.Uint32(b[:])
}

// DefaultTagSource is the TagSource Create uses when its tagSrc argument is
// nil.
var DefaultTagSource TagSource = cryptoTagSource{}
