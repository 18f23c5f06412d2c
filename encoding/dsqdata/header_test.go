// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/bio/alphabet"
)

func TestIndexHeaderRoundTrip(t *testing.T) {
	hdr := indexHeader{
		Magic:      magic,
		Tag:        0xdeadbeef,
		AlphaType:  uint32(alphabet.DNA),
		MaxNameLen: 12,
		MaxAccLen:  8,
		MaxDescLen: 40,
		MaxSeqLen:  1000,
		NSeq:       3,
		NRes:       250,
	}
	var buf bytes.Buffer
	require.NoError(t, hdr.writeTo(&buf))

	got, err := readIndexHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestReadIndexHeaderRejectsBadMagic(t *testing.T) {
	hdr := indexHeader{Magic: 0x11111111, Tag: 1}
	var buf bytes.Buffer
	require.NoError(t, hdr.writeTo(&buf))
	_, err := readIndexHeader(&buf)
	require.Error(t, err)
}

func TestReadIndexHeaderRejectsSwappedMagic(t *testing.T) {
	hdr := indexHeader{Magic: magicSwapped, Tag: 1}
	var buf bytes.Buffer
	require.NoError(t, hdr.writeTo(&buf))
	_, err := readIndexHeader(&buf)
	require.Error(t, err)
}

func TestSideHeaderRoundTrip(t *testing.T) {
	hdr := sideHeader{Magic: magic, Tag: 42}
	var buf bytes.Buffer
	require.NoError(t, hdr.writeTo(&buf))
	got, err := readSideHeader(&buf, "sequence")
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestIndexRecordRoundTrip(t *testing.T) {
	rec := indexRecord{PsqEnd: -1, MetadataEnd: 7}
	var buf bytes.Buffer
	require.NoError(t, rec.writeTo(&buf))
	got, err := readIndexRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestStubRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStub(&buf, 0xcafef00d, alphabet.Protein))
	tag, err := readStubTag(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0xcafef00d), tag)
}
