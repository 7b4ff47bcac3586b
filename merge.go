package bam2fastq

import "github.com/grailbio/hts/sam"

// mergeUnmapped concatenates the three categories with an unmapped
// side into one stream: fully unmapped pairs, then mapped reads with
// an unmapped mate, then unmapped reads with a mapped mate.  The merge
// preserves multiplicity exactly; empty categories contribute nothing.
func mergeUnmapped(part Partition) []*sam.Record {
	n := len(part.Categories[UnmapUnmap]) + len(part.Categories[MapUnmap]) + len(part.Categories[UnmapMap])
	if n == 0 {
		return nil
	}
	merged := make([]*sam.Record, 0, n)
	merged = append(merged, part.Categories[UnmapUnmap]...)
	merged = append(merged, part.Categories[MapUnmap]...)
	merged = append(merged, part.Categories[UnmapMap]...)
	return merged
}
