package bam2fastq

import (
	"github.com/grailbio/bam2fastq/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// DefaultClassifyWindow is the number of leading records Classify
// inspects when Opts does not override it.
const DefaultClassifyWindow = 1000

// Pairedness is the library layout of a sample.
type Pairedness int

const (
	// Single marks a single-end sample: every read stands alone.
	Single Pairedness = iota
	// Paired marks a paired-end sample: reads come in R1/R2 pairs.
	Paired
)

func (p Pairedness) String() string {
	if p == Paired {
		return "paired"
	}
	return "single"
}

// Classification is the outcome of classifying one sample, with the
// evidence it was based on.
type Classification struct {
	Class Pairedness
	// Sampled is the number of records inspected.  It is smaller than
	// the classify window when the input is short, and zero for an
	// empty input.
	Sampled int
	// PairedRecords is the number of inspected records carrying the
	// paired flag.
	PairedRecords int
}

// Fraction returns the fraction of inspected records carrying the
// paired flag, or 0 when nothing was inspected.
func (c Classification) Fraction() float64 {
	if c.Sampled == 0 {
		return 0
	}
	return float64(c.PairedRecords) / float64(c.Sampled)
}

// Classify reads the first window records of the provider's stream and
// classifies the sample as paired-end iff the fraction of
// paired-flagged records is at least threshold.  An empty stream
// classifies as single-end; the caller is expected to warn, since an
// empty window usually means an empty or foreign input.
func Classify(provider bamprovider.Provider, window int, threshold float64) (Classification, error) {
	c := Classification{}
	iter := provider.NewHeadIterator(window)
	for iter.Scan() {
		r := iter.Record()
		c.Sampled++
		if r.Flags&sam.Paired != 0 {
			c.PairedRecords++
		}
		sam.PutInFreePool(r)
	}
	if err := iter.Close(); err != nil {
		return c, err
	}
	if c.Sampled > 0 && c.Fraction() >= threshold {
		c.Class = Paired
	}
	return c, nil
}
