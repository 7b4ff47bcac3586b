package bam2fastq

import (
	"fmt"
	"sync"

	"github.com/grailbio/bam2fastq/encoding/fastq"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
)

// extractChunk is the target number of records per extraction chunk.
const extractChunk = 4096

// qualOffset converts a raw phred score to its FASTQ character.
const qualOffset = 33

// seq8ToASCIITable is the .bam seq nibble -> ASCII mapping.
var seq8ToASCIITable = [...]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}

// revComp4Table maps a .bam seq nibble to its complement (a bit
// reversal, since the nibble is a 4-bit base set).
var revComp4Table = [...]byte{0, 8, 4, 12, 2, 10, 6, 14, 1, 9, 5, 13, 3, 11, 7, 15}

// Extraction is the FASTQ yield of one record stream: R1[i] and R2[i]
// always name the two sides of one pair, and Singletons holds the
// reads without a mate.
type Extraction struct {
	R1, R2     []fastq.Read
	Singletons []fastq.Read
}

// DuplicateMateGroupError reports a read name shared by more than two
// primary records.  A valid read archive has at most two records per
// name once secondary and supplementary alignments are excluded, so
// this means the input is not restorable.
type DuplicateMateGroupError struct {
	Name  string
	Count int
}

func (e *DuplicateMateGroupError) Error() string {
	return fmt.Sprintf("duplicate mate group: %d records named %q (a read pair has at most 2)", e.Count, e.Name)
}

func seqNibble(r *sam.Record, i int) byte {
	b := byte(r.Seq.Seq[i>>1])
	if i&1 == 0 {
		return b >> 4
	}
	return b & 0xf
}

// fastqRecord converts one alignment record to FASTQ form.  A record
// aligned to the reverse strand is flipped back to read orientation:
// bases reverse-complemented, qualities reversed.  suffix is appended
// to the read name.
func fastqRecord(r *sam.Record, suffix string) fastq.Read {
	n := r.Seq.Length
	seq := make([]byte, n)
	qual := make([]byte, n)
	if r.Flags&sam.Reverse != 0 {
		for i := 0; i < n; i++ {
			seq[i] = seq8ToASCIITable[revComp4Table[seqNibble(r, n-1-i)]]
			qual[i] = r.Qual[n-1-i] + qualOffset
		}
	} else {
		for i := 0; i < n; i++ {
			seq[i] = seq8ToASCIITable[seqNibble(r, i)]
			qual[i] = r.Qual[i] + qualOffset
		}
	}
	return fastq.Read{
		ID:   "@" + r.Name + suffix,
		Seq:  unsafe.BytesToString(seq),
		Unk:  "+",
		Qual: unsafe.BytesToString(qual),
	}
}

type span struct{ begin, end int }

// chunkSpans cuts recs into chunks of roughly extractChunk records,
// moving each cut forward so it never splits a name group.
func chunkSpans(recs []*sam.Record) []span {
	var spans []span
	begin := 0
	for begin < len(recs) {
		end := begin + extractChunk
		if end >= len(recs) {
			spans = append(spans, span{begin, len(recs)})
			break
		}
		for end < len(recs) && recs[end].Name == recs[end-1].Name {
			end++
		}
		spans = append(spans, span{begin, end})
		begin = end
	}
	return spans
}

// extractGroups walks the name groups of a collated chunk.  A group of
// two becomes an R1/R2 pair oriented by the read-ordinal flags, a
// group of one becomes a singleton, and a larger group fails the
// sample.  Records are returned to the free pool after conversion.
func extractGroups(recs []*sam.Record, opts Opts) (Extraction, error) {
	var ext Extraction
	suffix1, suffix2 := "", ""
	if opts.NameSuffix {
		suffix1, suffix2 = "/1", "/2"
	}
	for begin := 0; begin < len(recs); {
		end := begin + 1
		for end < len(recs) && recs[end].Name == recs[begin].Name {
			end++
		}
		switch end - begin {
		case 1:
			ext.Singletons = append(ext.Singletons, fastqRecord(recs[begin], ""))
		case 2:
			a, b := recs[begin], recs[begin+1]
			if a.Flags&sam.Read2 != 0 || b.Flags&sam.Read1 != 0 {
				a, b = b, a
			}
			ext.R1 = append(ext.R1, fastqRecord(a, suffix1))
			ext.R2 = append(ext.R2, fastqRecord(b, suffix2))
		default:
			return Extraction{}, &DuplicateMateGroupError{Name: recs[begin].Name, Count: end - begin}
		}
		for i := begin; i < end; i++ {
			sam.PutInFreePool(recs[i])
		}
		begin = end
	}
	return ext, nil
}

// extractPaired converts a collated record stream to FASTQ pairs and
// singletons.  Chunks are processed in parallel; an ordered queue
// reassembles their yields so the output order matches recs.
func extractPaired(recs []*sam.Record, opts Opts) (Extraction, error) {
	if len(recs) == 0 {
		return Extraction{}, nil
	}
	spans := chunkSpans(recs)
	queue := syncqueue.NewOrderedQueue(len(spans))

	var (
		e   errors.Once
		ext Extraction
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			entry, ok, err := queue.Next()
			if err != nil {
				e.Set(err)
				break
			}
			if !ok {
				break
			}
			part := entry.(Extraction)
			ext.R1 = append(ext.R1, part.R1...)
			ext.R2 = append(ext.R2, part.R2...)
			ext.Singletons = append(ext.Singletons, part.Singletons...)
		}
	}()
	err := traverse.Each(len(spans), func(i int) error {
		part, err := extractGroups(recs[spans[i].begin:spans[i].end], opts)
		if err != nil {
			return err
		}
		return queue.Insert(i, part)
	})
	e.Set(queue.Close(err))
	wg.Wait()
	if err != nil {
		// Worker errors take precedence over queue teardown noise.
		return Extraction{}, err
	}
	if err := e.Err(); err != nil {
		return Extraction{}, err
	}
	return ext, nil
}

// extractSingle converts a single-end record stream to FASTQ.  Every
// record becomes a singleton; read names need not be unique.
func extractSingle(recs []*sam.Record) Extraction {
	if len(recs) == 0 {
		return Extraction{}
	}
	out := make([]fastq.Read, len(recs))
	nChunks := (len(recs) + extractChunk - 1) / extractChunk
	err := traverse.Each(nChunks, func(c int) error {
		begin := (c * len(recs)) / nChunks
		end := ((c + 1) * len(recs)) / nChunks
		for i := begin; i < end; i++ {
			out[i] = fastqRecord(recs[i], "")
			sam.PutInFreePool(recs[i])
		}
		return nil
	})
	if err != nil {
		log.Panicf("extract: %v", err)
	}
	return Extraction{Singletons: out}
}
