// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata_test

import (
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/bio/alphabet"
	"github.com/grailbio/bio/dsqseq"
	"github.com/grailbio/bio/encoding/dsqdata"
)

// memSource is a dsqseq.Source backed by an in-memory slice, giving tests
// precise control over name/acc/desc/taxid/digital fields that
// dsqseq.FASTASource (taxid always 0, alphabet fixed per file) doesn't
// expose.
type memSource struct {
	alpha alphabet.Alphabet
	recs  []dsqseq.Record
	pos   int
}

func (s *memSource) Alphabet() alphabet.Alphabet { return s.alpha }

func (s *memSource) Rewind() error {
	s.pos = 0
	return nil
}

func (s *memSource) Next() (*dsqseq.Record, error) {
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	r := s.recs[s.pos]
	s.pos++
	return &r, nil
}

func digitize(t testing.TB, alpha alphabet.Alphabet, s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		code, ok := alpha.Digitize(s[i])
		require.True(t, ok, "undigitizable residue %q", s[i])
		out[i] = code
	}
	return out
}

func tempBase(t *testing.T, name string) string {
	dir, err := ioutil.TempDir("", "dsqdata_test")
	require.NoError(t, err)
	t.Logf("temp dir: %s", dir)
	return filepath.Join(dir, name)
}

// readAll drives a single-consumer Open/Read/Recycle loop to completion and
// returns every sequence's residues, name, acc, desc, and taxid in on-disk
// order.
func readAll(t testing.TB, base string, alpha alphabet.Alphabet) (names, accs, descs []string, taxids []int32, residues [][]byte) {
	r, err := dsqdata.Open(base, 1, alpha)
	require.NoError(t, err)
	require.NoError(t, r.Err())
	defer func() { require.NoError(t, r.Close()) }()

	for {
		chunk, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for i := 0; i < chunk.N; i++ {
			names = append(names, chunk.Name[i])
			accs = append(accs, chunk.Acc[i])
			descs = append(descs, chunk.Desc[i])
			taxids = append(taxids, chunk.Taxid[i])
			residues = append(residues, append([]byte(nil), chunk.Residues(i)...))
		}
		r.Recycle(chunk)
	}
	return
}

func TestProteinRoundTrip(t *testing.T) {
	alpha := alphabet.ProteinAlphabet
	src := &memSource{
		alpha: alpha,
		recs: []dsqseq.Record{
			// Scenario 1: empty protein sequence.
			{Name: "x", Acc: "", Desc: "", Taxid: 0, Digital: nil},
			// Scenario 2: single-packet protein.
			{Name: "seq1", Acc: "ACC1", Desc: "first", Taxid: 9606, Digital: digitize(t, alpha, "ACDE")},
		},
	}
	base := tempBase(t, "protein")
	require.NoError(t, dsqdata.Create(base, src, nil))

	names, accs, descs, taxids, residues := readAll(t, base, alpha)
	require.Equal(t, []string{"x", "seq1"}, names)
	require.Equal(t, []string{"", "ACC1"}, accs)
	require.Equal(t, []string{"", "first"}, descs)
	require.Equal(t, []int32{0, 9606}, taxids)
	require.Empty(t, residues[0])
	require.Equal(t, digitize(t, alpha, "ACDE"), residues[1])
}

func TestNucleicRoundTrip(t *testing.T) {
	alpha := alphabet.DNAAlphabet
	canonical30 := make([]byte, 30)
	for i := range canonical30 {
		canonical30[i] = byte(i % 4)
	}
	degenerate15 := digitize(t, alpha, "ACGTACGTNNACGTA")
	src := &memSource{
		alpha: alpha,
		recs: []dsqseq.Record{
			// Scenario 3: pure canonical DNA of length 30.
			{Name: "canon30", Digital: canonical30},
			// Scenario 4: degenerate-forced realignment.
			{Name: "degen15", Digital: degenerate15},
		},
	}
	base := tempBase(t, "nucleic")
	require.NoError(t, dsqdata.Create(base, src, nil))

	names, _, _, _, residues := readAll(t, base, alpha)
	require.Equal(t, []string{"canon30", "degen15"}, names)
	require.Equal(t, canonical30, residues[0])
	require.Equal(t, degenerate15, residues[1])
}

func TestOpenRejectsAlphabetMismatch(t *testing.T) {
	alpha := alphabet.DNAAlphabet
	src := &memSource{alpha: alpha, recs: []dsqseq.Record{{Name: "a", Digital: digitize(t, alpha, "ACGT")}}}
	base := tempBase(t, "mismatch")
	require.NoError(t, dsqdata.Create(base, src, nil))

	_, err := dsqdata.Open(base, 1, alphabet.ProteinAlphabet)
	require.Error(t, err)
}

func TestOpenRejectsMetadataTagMismatch(t *testing.T) {
	alpha := alphabet.ProteinAlphabet
	src := &memSource{alpha: alpha, recs: []dsqseq.Record{{Name: "a", Digital: digitize(t, alpha, "ACDE")}}}
	base := tempBase(t, "tagmismatch")
	require.NoError(t, dsqdata.Create(base, src, nil))

	// The metadata file's header is magic(4 bytes) then tag(4 bytes);
	// flipping a byte in the tag field must make Open fail with a message
	// naming the metadata file.
	metaPath := base + ".dsqm"
	b, err := ioutil.ReadFile(metaPath)
	require.NoError(t, err)
	b[4] ^= 0xff
	require.NoError(t, ioutil.WriteFile(metaPath, b, 0644))

	_, err = dsqdata.Open(base, 1, alpha)
	require.Error(t, err)
	require.Contains(t, err.Error(), "metadata")
}

func TestMultiConsumerOrdering(t *testing.T) {
	const nseq = 10000
	alpha := alphabet.DNAAlphabet
	rng := rand.New(rand.NewSource(1))
	recs := make([]dsqseq.Record, nseq)
	want := make([][]byte, nseq)
	for i := range recs {
		n := rng.Intn(40)
		digital := make([]byte, n)
		for j := range digital {
			if rng.Intn(20) == 0 {
				digital[j] = alphabet.MaxCanonical + 1 + byte(rng.Intn(10))
			} else {
				digital[j] = byte(rng.Intn(4))
			}
		}
		recs[i] = dsqseq.Record{Name: fmt.Sprintf("seq%05d", i), Taxid: int32(i), Digital: digital}
		want[i] = digital
	}
	src := &memSource{alpha: alpha, recs: recs}
	base := tempBase(t, "multiconsumer")
	require.NoError(t, dsqdata.Create(base, src, nil))

	const nconsumers = 4
	r, err := dsqdata.Open(base, nconsumers, alpha)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	seen := make([]int32, nseq)
	for i := range seen {
		seen[i] = -1
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(nconsumers)
	for c := 0; c < nconsumers; c++ {
		go func(id int) {
			defer wg.Done()
			for {
				chunk, err := r.Read()
				if err == io.EOF {
					return
				}
				assert.NoError(t, err)
				mu.Lock()
				for i := 0; i < chunk.N; i++ {
					idx := chunk.I0 + i
					assert.Equal(t, int32(-1), seen[idx], "sequence %d delivered twice", idx)
					seen[idx] = int32(id)
					assert.Equal(t, want[idx], chunk.Residues(i))
					assert.Equal(t, fmt.Sprintf("seq%05d", idx), chunk.Name[i])
				}
				mu.Unlock()
				r.Recycle(chunk)
			}
		}(c)
	}
	wg.Wait()

	for i, who := range seen {
		require.NotEqual(t, int32(-1), who, "sequence %d never delivered", i)
	}
}
