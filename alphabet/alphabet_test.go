// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package alphabet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDNACanonical(t *testing.T) {
	for i, sym := range []byte("ACGT") {
		code, ok := DNAAlphabet.Digitize(sym)
		require.True(t, ok)
		require.Equal(t, uint8(i), code)
		require.True(t, code <= MaxCanonical)
		require.Equal(t, sym, DNAAlphabet.Symbol(code))
	}
	code, ok := DNAAlphabet.Digitize('n')
	require.True(t, ok)
	require.True(t, code > MaxCanonical)
	_, ok = DNAAlphabet.Digitize('x')
	require.False(t, ok)
}

func TestRNAUsesU(t *testing.T) {
	code, ok := RNAAlphabet.Digitize('U')
	require.True(t, ok)
	require.Equal(t, uint8(3), code)
	_, ok = RNAAlphabet.Digitize('T')
	require.False(t, ok)
}

func TestProteinIsNotNucleic(t *testing.T) {
	require.False(t, Protein.IsNucleic())
	require.True(t, DNA.IsNucleic())
	require.True(t, RNA.IsNucleic())
	code, ok := ProteinAlphabet.Digitize('d')
	require.True(t, ok)
	require.Equal(t, byte('D'), ProteinAlphabet.Symbol(code))
}

func TestForType(t *testing.T) {
	require.Equal(t, ProteinAlphabet, ForType(Protein))
	require.Nil(t, ForType(Type(99)))
}
