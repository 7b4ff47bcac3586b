package bam2fastq

import (
	"sync"

	"github.com/grailbio/base/errors"
)

// Branches pairs the mapped and unmapped extraction results of one
// sample.  A branch with no input records is absent; fully aligned and
// fully unaligned samples are both normal, so absence is not an error.
type Branches struct {
	Mapped      Extraction
	HasMapped   bool
	Unmapped    Extraction
	HasUnmapped bool
}

// extractBranches collates and extracts the mapped and unmapped
// branches of a partitioned sample, then joins them.  The two branches
// are independent streams and run concurrently.  Record ownership
// passes to the branches; they free records as they convert them.
func extractBranches(part Partition, opts Opts) (Extraction, error) {
	mapped := part.Categories[MapMap]
	unmapped := mergeUnmapped(part)

	var (
		b  Branches
		e  errors.Once
		wg sync.WaitGroup
	)
	if len(mapped) > 0 {
		b.HasMapped = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			ext, err := extractPaired(collateByName(mapped), opts)
			if err != nil {
				e.Set(err)
				return
			}
			b.Mapped = ext
		}()
	}
	if len(unmapped) > 0 {
		b.HasUnmapped = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			ext, err := extractPaired(collateByName(unmapped), opts)
			if err != nil {
				e.Set(err)
				return
			}
			b.Unmapped = ext
		}()
	}
	wg.Wait()
	if err := e.Err(); err != nil {
		return Extraction{}, err
	}
	return joinBranches(b), nil
}

// joinBranches concatenates the branches, mapped reads first.  An
// absent branch contributes nothing, so joining two absent branches
// yields an empty extraction.
func joinBranches(b Branches) Extraction {
	var ext Extraction
	if b.HasMapped {
		ext = b.Mapped
	}
	if b.HasUnmapped {
		ext.R1 = append(ext.R1, b.Unmapped.R1...)
		ext.R2 = append(ext.R2, b.Unmapped.R2...)
		ext.Singletons = append(ext.Singletons, b.Unmapped.Singletons...)
	}
	return ext
}
