// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

// Default chunking limits for the read pipeline. A chunk holds at most
// MaxSeqPerChunk sequences and MaxPacketPerChunk packets, whichever bound it
// hits first; these values match upstream Easel's dsqdata defaults.
const (
	MaxSeqPerChunk    = 4096
	MaxPacketPerChunk = 4096 * 32
)

// DefaultConsumers is the consumer count Open sizes its chunk budget for
// when a caller passes nconsumers < 1.
const DefaultConsumers = 1
