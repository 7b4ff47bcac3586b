package bam2fastq

import "github.com/grailbio/bam2fastq/encoding/fastq"

// subsampleExtraction filters ext down to roughly rate of its reads,
// preserving order.  The selection rule is fastq.KeepRead, which
// hashes the read name, so pairs are kept or discarded as a unit and
// repeated runs select the same reads.
func subsampleExtraction(ext Extraction, rate float64) Extraction {
	var out Extraction
	for i := range ext.R1 {
		if fastq.KeepRead(ext.R1[i].Name(), rate) {
			out.R1 = append(out.R1, ext.R1[i])
			out.R2 = append(out.R2, ext.R2[i])
		}
	}
	for _, r := range ext.Singletons {
		if fastq.KeepRead(r.Name(), rate) {
			out.Singletons = append(out.Singletons, r)
		}
	}
	return out
}
