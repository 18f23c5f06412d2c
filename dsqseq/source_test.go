// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqseq

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/bio/alphabet"
)

func TestFASTASourceRoundTrip(t *testing.T) {
	data := ">x\n" +
		">seq1 ACC001 first test sequence\n" +
		"ACDE\n" +
		">seq2\n" +
		"AC\nDE\n"
	src := NewFASTASource(bytes.NewReader([]byte(data)), alphabet.ProteinAlphabet)
	require.Equal(t, alphabet.ProteinAlphabet, src.Alphabet())

	r, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "x", r.Name)
	require.Empty(t, r.Digital)

	r, err = src.Next()
	require.NoError(t, err)
	require.Equal(t, "seq1", r.Name)
	require.Equal(t, "ACC001", r.Acc)
	require.Equal(t, "first test sequence", r.Desc)
	require.Len(t, r.Digital, 4)

	r, err = src.Next()
	require.NoError(t, err)
	require.Equal(t, "seq2", r.Name)
	require.Len(t, r.Digital, 4)

	_, err = src.Next()
	require.Equal(t, io.EOF, err)

	require.NoError(t, src.Rewind())
	r, err = src.Next()
	require.NoError(t, err)
	require.Equal(t, "x", r.Name)
}

func TestFASTASourceRejectsBadResidue(t *testing.T) {
	src := NewFASTASource(bytes.NewReader([]byte(">x\nACZZ\n")), alphabet.DNAAlphabet)
	_, err := src.Next()
	require.Error(t, err)
}
