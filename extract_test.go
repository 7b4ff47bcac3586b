package bam2fastq

import (
	"fmt"
	"testing"

	"github.com/grailbio/bam2fastq/encoding/fastq"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPair(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("p1", ref, 100, sam.Paired|sam.Read1, 200, ref, "ACGT", "IIII"),
		NewRecordSeq("p1", ref, 200, sam.Paired|sam.Read2, 100, ref, "GGCA", "JJJJ"),
	}
	ext, err := extractPaired(recs, Opts{})
	require.NoError(t, err)
	require.Equal(t, 1, len(ext.R1))
	require.Equal(t, 1, len(ext.R2))
	assert.Empty(t, ext.Singletons)
	assert.Equal(t, fastq.Read{ID: "@p1", Seq: "ACGT", Unk: "+", Qual: "IIII"}, ext.R1[0])
	assert.Equal(t, fastq.Read{ID: "@p1", Seq: "GGCA", Unk: "+", Qual: "JJJJ"}, ext.R2[0])
}

// TestExtractOrientSwap feeds a pair R2-first and expects the sides to
// land by read ordinal, not input order.
func TestExtractOrientSwap(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("p2", ref, 200, sam.Paired|sam.Read2, 100, ref, "TTTT", "AAAA"),
		NewRecordSeq("p2", ref, 100, sam.Paired|sam.Read1, 200, ref, "CCCC", "BBBB"),
	}
	ext, err := extractPaired(recs, Opts{})
	require.NoError(t, err)
	require.Equal(t, 1, len(ext.R1))
	assert.Equal(t, "CCCC", ext.R1[0].Seq)
	assert.Equal(t, "TTTT", ext.R2[0].Seq)
}

// TestExtractReverse checks that a reverse-strand record is restored
// to read orientation: bases reverse-complemented, qualities reversed.
func TestExtractReverse(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("rev", ref, 100, sam.Paired|sam.Reverse, -1, nil, "AACC", "ABCD"),
	}
	ext, err := extractPaired(recs, Opts{})
	require.NoError(t, err)
	require.Equal(t, 1, len(ext.Singletons))
	assert.Equal(t, fastq.Read{ID: "@rev", Seq: "GGTT", Unk: "+", Qual: "DCBA"}, ext.Singletons[0])
}

func TestExtractAmbiguousBases(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("amb", ref, 100, sam.Paired|sam.Reverse, -1, nil, "ANGT", "FFFF"),
	}
	ext, err := extractPaired(recs, Opts{})
	require.NoError(t, err)
	require.Equal(t, 1, len(ext.Singletons))
	// N complements to N.
	assert.Equal(t, "ACNT", ext.Singletons[0].Seq)
}

func TestExtractNameSuffix(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("p3", ref, 100, sam.Paired|sam.Read1, 200, ref, "AAAA", "IIII"),
		NewRecordSeq("p3", ref, 200, sam.Paired|sam.Read2, 100, ref, "CCCC", "IIII"),
		NewRecordSeq("s1", ref, 300, sam.Paired|sam.Read1|sam.MateUnmapped, 300, ref, "GGGG", "IIII"),
	}
	ext, err := extractPaired(recs, Opts{NameSuffix: true})
	require.NoError(t, err)
	require.Equal(t, 1, len(ext.R1))
	assert.Equal(t, "@p3/1", ext.R1[0].ID)
	assert.Equal(t, "@p3/2", ext.R2[0].ID)
	// The mate suffix marks pair sides only; singletons keep the bare
	// name.
	require.Equal(t, 1, len(ext.Singletons))
	assert.Equal(t, "@s1", ext.Singletons[0].ID)
}

func TestExtractDuplicateMateGroup(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("trip", ref, 100, sam.Paired|sam.Read1, 200, ref, "AAAA", "IIII"),
		NewRecordSeq("trip", ref, 200, sam.Paired|sam.Read2, 100, ref, "CCCC", "IIII"),
		NewRecordSeq("trip", ref, 300, sam.Paired|sam.Read2, 100, ref, "GGGG", "IIII"),
	}
	_, err := extractGroups(recs, Opts{})
	require.Error(t, err)
	dup, ok := err.(*DuplicateMateGroupError)
	require.True(t, ok, "unexpected error type: %v", err)
	assert.Equal(t, "trip", dup.Name)
	assert.Equal(t, 3, dup.Count)
}

func TestExtractDuplicateMateGroupFailsStream(t *testing.T) {
	_, ref := NewTestHeader()
	var recs []*sam.Record
	for i := 0; i < 4; i++ {
		recs = append(recs, NewRecordSeq("quad", ref, 100+i, sam.Paired, -1, nil, "AAAA", "IIII"))
	}
	_, err := extractPaired(recs, Opts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate mate group")
}

func TestChunkSpans(t *testing.T) {
	_, ref := NewTestHeader()
	// Name runs of three records force chunk cuts to move off the
	// default boundary.
	recs := make([]*sam.Record, 9999)
	for i := range recs {
		recs[i] = NewRecord(fmt.Sprintf("n%05d", i/3), ref, i, sam.Paired, -1, nil)
	}
	spans := chunkSpans(recs)
	require.True(t, len(spans) > 1)
	next := 0
	for _, s := range spans {
		assert.Equal(t, next, s.begin)
		assert.True(t, s.end > s.begin)
		next = s.end
	}
	assert.Equal(t, len(recs), next)
	for _, s := range spans[1:] {
		assert.NotEqual(t, recs[s.begin-1].Name, recs[s.begin].Name, "cut at %d splits a group", s.begin)
	}
	for _, r := range recs {
		sam.PutInFreePool(r)
	}
}

// TestExtractPairedLarge pushes enough pairs through extraction to
// engage several chunks and verifies the reassembled order matches
// the collated input.
func TestExtractPairedLarge(t *testing.T) {
	const nPairs = 10000
	_, ref := NewTestHeader()
	recs := make([]*sam.Record, 0, 2*nPairs)
	for i := 0; i < nPairs; i++ {
		name := fmt.Sprintf("p%05d", i)
		recs = append(recs,
			NewRecordSeq(name, ref, 2*i, sam.Paired|sam.Read1, 2*i+1, ref, "ACGT", "IIII"),
			NewRecordSeq(name, ref, 2*i+1, sam.Paired|sam.Read2, 2*i, ref, "TGCA", "IIII"))
	}
	ext, err := extractPaired(recs, Opts{})
	require.NoError(t, err)
	require.Equal(t, nPairs, len(ext.R1))
	require.Equal(t, nPairs, len(ext.R2))
	assert.Empty(t, ext.Singletons)
	for i := range ext.R1 {
		want := fmt.Sprintf("@p%05d", i)
		require.Equal(t, want, ext.R1[i].ID)
		require.Equal(t, want, ext.R2[i].ID)
	}
}

func TestExtractSingle(t *testing.T) {
	_, ref := NewTestHeader()
	recs := []*sam.Record{
		NewRecordSeq("a", ref, 100, 0, -1, nil, "ACGT", "IIII"),
		NewRecordSeq("b", ref, 200, sam.Reverse, -1, nil, "AACC", "ABCD"),
		NewRecordSeq("a", ref, 300, 0, -1, nil, "TTTT", "JJJJ"),
	}
	ext := extractSingle(recs)
	assert.Empty(t, ext.R1)
	require.Equal(t, 3, len(ext.Singletons))
	assert.Equal(t, fastq.Read{ID: "@a", Seq: "ACGT", Unk: "+", Qual: "IIII"}, ext.Singletons[0])
	assert.Equal(t, fastq.Read{ID: "@b", Seq: "GGTT", Unk: "+", Qual: "DCBA"}, ext.Singletons[1])
	assert.Equal(t, fastq.Read{ID: "@a", Seq: "TTTT", Unk: "+", Qual: "JJJJ"}, ext.Singletons[2])
}
