package bam2fastq

import (
	"fmt"

	"github.com/grailbio/bam2fastq/encoding/bamprovider"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Category identifies the mate-mapping state of a primary record in a
// paired sample.
type Category int

const (
	// MapMap holds records where the read and its mate are both mapped.
	MapMap Category = iota
	// UnmapUnmap holds records where neither the read nor its mate is
	// mapped.
	UnmapUnmap
	// UnmapMap holds unmapped records whose mate is mapped.
	UnmapMap
	// MapUnmap holds mapped records whose mate is unmapped.  These
	// records sit at their own alignment position, far from where their
	// mate is stored, which is why they travel with the unmapped stream.
	MapUnmap

	numCategories
)

var categoryNames = [numCategories]string{"map-map", "unmap-unmap", "unmap-map", "map-unmap"}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// categorySpec is a flag predicate: a record matches when every flag
// in set is present and every flag in clear is absent.
type categorySpec struct {
	set   sam.Flags
	clear sam.Flags
}

func (s categorySpec) match(f sam.Flags) bool {
	return f&s.set == s.set && f&s.clear == 0
}

var categorySpecs = [numCategories]categorySpec{
	MapMap:     {set: sam.Paired, clear: sam.Unmapped | sam.MateUnmapped},
	UnmapUnmap: {set: sam.Unmapped | sam.MateUnmapped, clear: sam.Secondary},
	UnmapMap:   {set: sam.Unmapped, clear: sam.MateUnmapped | sam.Secondary},
	MapUnmap:   {set: sam.MateUnmapped, clear: sam.Unmapped | sam.Secondary},
}

// Partition is one paired sample's primary records split by category.
type Partition struct {
	Categories [numCategories][]*sam.Record
	// Primary is the number of records tested against the category
	// predicates.
	Primary int
	// Excluded is the number of secondary and supplementary records
	// skipped before the predicates.
	Excluded int
	// Dropped is the number of records matching no category.
	Dropped int
}

// free returns every partitioned record to the free pool.
func (p *Partition) free() {
	for c := range p.Categories {
		for _, r := range p.Categories[c] {
			sam.PutInFreePool(r)
		}
		p.Categories[c] = nil
	}
}

// partitionRecords drains iter and splits its records by category.
// Secondary and supplementary records are excluded before the
// predicates and never reach output.  A record matching no category is
// dropped with a warning; a record matching more than one means the
// predicate table and the input disagree about what flags can coexist,
// and fails the sample.  The caller owns closing iter.
//
// Every category predicate is evaluated for every record, so
// Categories are disjoint by construction and
// Primary == sum(Categories) + Dropped holds on return.
func partitionRecords(sampleName string, iter bamprovider.Iterator) (Partition, error) {
	var part Partition
	for iter.Scan() {
		r := iter.Record()
		if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			part.Excluded++
			sam.PutInFreePool(r)
			continue
		}
		part.Primary++
		matched := Category(-1)
		for c := MapMap; c < numCategories; c++ {
			if !categorySpecs[c].match(r.Flags) {
				continue
			}
			if matched >= 0 {
				part.free()
				return part, fmt.Errorf("%s: record %s flags %v match both %v and %v",
					sampleName, r.Name, r.Flags, matched, c)
			}
			matched = c
		}
		if matched < 0 {
			part.Dropped++
			log.Error.Printf("%s: dropping record %s: flags %v match no category", sampleName, r.Name, r.Flags)
			sam.PutInFreePool(r)
			continue
		}
		part.Categories[matched] = append(part.Categories[matched], r)
	}
	if err := iter.Err(); err != nil {
		part.free()
		return part, err
	}
	return part, nil
}

// readPrimary drains iter and returns its primary records in input
// order, counting the excluded secondary and supplementary records.
// Single-end samples use this in place of the category partition.
func readPrimary(iter bamprovider.Iterator) ([]*sam.Record, int, error) {
	var (
		recs     []*sam.Record
		excluded int
	)
	for iter.Scan() {
		r := iter.Record()
		if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			excluded++
			sam.PutInFreePool(r)
			continue
		}
		recs = append(recs, r)
	}
	return recs, excluded, iter.Err()
}
