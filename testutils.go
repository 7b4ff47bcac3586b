package bam2fastq

import (
	"context"
	"os"
	"testing"

	"github.com/grailbio/bam2fastq/encoding/fastq"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestHeader returns a single-reference header for tests.
func NewTestHeader() (*sam.Header, *sam.Reference) {
	ref, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	if err != nil {
		panic(err)
	}
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		panic(err)
	}
	return header, ref
}

func NewRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, matePos int, mateRef *sam.Reference) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MatePos = matePos
	r.MateRef = mateRef
	r.Flags = flags
	return r
}

// NewRecordSeq is NewRecord with sequence and quality attached.  qual
// is given FASTQ-encoded (Phred+33), the way it would appear in the
// restored output of an unreversed record.
func NewRecordSeq(name string, ref *sam.Reference, pos int, flags sam.Flags, matePos int, mateRef *sam.Reference,
	seq, qual string) *sam.Record {
	if len(seq) != len(qual) {
		panic("seq and qual must be equal length")
	}
	r := NewRecord(name, ref, pos, flags, matePos, mateRef)
	r.Seq = sam.NewSeq([]byte(seq))
	r.Qual = make([]byte, len(qual))
	for i := 0; i < len(qual); i++ {
		r.Qual[i] = qual[i] - 33
	}
	return r
}

// WriteTestBAM writes recs to a BAM file at path.
func WriteTestBAM(t *testing.T, path string, header *sam.Header, recs []*sam.Record) {
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, header, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

// ReadFASTQ reads all reads from the FASTQ file at path, decompressing
// transparently.
func ReadFASTQ(t *testing.T, path string) []fastq.Read {
	scanner, closer, err := fastq.OpenScanner(context.Background(), path, fastq.All)
	require.NoError(t, err)
	var reads []fastq.Read
	var read fastq.Read
	for scanner.Scan(&read) {
		reads = append(reads, read)
	}
	assert.NoError(t, scanner.Err())
	assert.NoError(t, closer())
	return reads
}
