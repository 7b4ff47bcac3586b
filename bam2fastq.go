package bam2fastq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/bam2fastq/encoding/bamprovider"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
)

// ErrNoRecords is returned for a sample whose input holds no records
// at all, not even secondary or supplementary ones.
var ErrNoRecords = errors.New("no records in input")

// Opts configures a restoration run.
type Opts struct {
	// OutputDir is the directory receiving the FASTQ files.  A local
	// directory is created if it does not exist.
	OutputDir string
	// GzipOutput gzip-compresses every output file and appends .gz to
	// its name.
	GzipOutput bool
	// ClassifyWindow is the number of leading records inspected to
	// decide whether a sample is paired-end.
	ClassifyWindow int
	// PairedFraction is the minimum fraction of paired-flagged records
	// in the classify window for a sample to count as paired-end.
	PairedFraction float64
	// NameSuffix appends /1 and /2 to the names of paired reads.
	NameSuffix bool
	// SubsampleRate keeps approximately this fraction of reads,
	// selected by read name so that mates stay together.  0 or 1
	// disables subsampling.
	SubsampleRate float64
	// Parallelism caps the number of samples restored concurrently.
	Parallelism int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	OutputDir:      ".",
	ClassifyWindow: DefaultClassifyWindow,
	PairedFraction: 1.0,
	SubsampleRate:  1.0,
	Parallelism:    runtime.NumCPU(),
}

func (o Opts) validate() error {
	if o.ClassifyWindow < 1 {
		return fmt.Errorf("classify window must be positive, got %d", o.ClassifyWindow)
	}
	if o.PairedFraction <= 0 || o.PairedFraction > 1 {
		return fmt.Errorf("paired fraction must be in (0, 1], got %v", o.PairedFraction)
	}
	if o.SubsampleRate < 0 || o.SubsampleRate > 1 {
		return fmt.Errorf("subsample rate must be in [0, 1], got %v", o.SubsampleRate)
	}
	if o.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive, got %d", o.Parallelism)
	}
	return nil
}

// Sample names one input and the name its output files carry.
type Sample struct {
	Name string
	Path string
}

// Stats summarizes the restoration of one sample.
type Stats struct {
	// Primary is the number of primary records scanned.
	Primary int
	// Excluded is the number of secondary and supplementary records
	// skipped before partitioning.
	Excluded int
	// Dropped is the number of primary records whose flags matched no
	// category.
	Dropped int
	// Categories counts the primary records routed to each category of
	// a paired sample.
	Categories [numCategories]int
	// Pairs is the number of R1/R2 read pairs emitted.
	Pairs int
	// Singletons is the number of unpaired reads emitted.
	Singletons int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Primary += o.Primary
	s.Excluded += o.Excluded
	s.Dropped += o.Dropped
	for i, n := range o.Categories {
		s.Categories[i] += n
	}
	s.Pairs += o.Pairs
	s.Singletons += o.Singletons
	return s
}

// Result is the outcome of restoring one sample.  Err is nil iff every
// output file of the sample was written completely.
type Result struct {
	Sample Sample
	Class  Classification
	Stats  Stats
	// Files lists the output files written, in R1, R2, singleton order.
	// Suppressed (empty) files are not listed.
	Files []string
	Err   error
}

// Run restores every sample concurrently, up to opts.Parallelism
// samples at a time.  Samples succeed or fail independently: Run
// always returns one Result per sample, in input order, plus a
// summary error if any sample failed.
func Run(ctx context.Context, samples []Sample, opts Opts) ([]Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.OutputDir != "" && !strings.Contains(opts.OutputDir, "://") {
		if err := os.MkdirAll(opts.OutputDir, 0775); err != nil {
			return nil, err
		}
	}
	results := make([]Result, len(samples))
	jobs := opts.Parallelism
	if jobs > len(samples) {
		jobs = len(samples)
	}
	traverseErr := traverse.Each(jobs, func(jobIdx int) error {
		begin := (jobIdx * len(samples)) / jobs
		end := ((jobIdx + 1) * len(samples)) / jobs
		for i := begin; i < end; i++ {
			results[i] = restoreSample(ctx, samples[i], opts)
		}
		return nil
	})
	if traverseErr != nil {
		return results, traverseErr
	}
	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d samples failed", failed, len(samples))
	}
	return results, nil
}

// restoreSample runs the whole pipeline for one sample.  All errors,
// including the provider's deferred IO errors, end up in the Result.
func restoreSample(ctx context.Context, sample Sample, opts Opts) Result {
	res := Result{Sample: sample}
	fail := func(stage string, err error) Result {
		res.Err = fmt.Errorf("sample %s: %s: %v", sample.Name, stage, err)
		return res
	}
	provider := bamprovider.NewProvider(sample.Path)
	defer func() {
		if err := provider.Close(); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("sample %s: close %s: %v", sample.Name, sample.Path, err)
		}
	}()

	class, err := Classify(provider, opts.ClassifyWindow, opts.PairedFraction)
	if err != nil {
		return fail("classify", err)
	}
	res.Class = class
	if class.Sampled == 0 {
		log.Error.Printf("%s: no records in the first %d of %s, assuming single-end",
			sample.Name, opts.ClassifyWindow, sample.Path)
	}
	if err = ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	var ext Extraction
	if class.Class == Paired {
		ext, res.Stats, err = restorePaired(sample, provider, opts)
	} else {
		ext, res.Stats, err = restoreSingle(sample, provider)
	}
	if err != nil {
		if err == ErrNoRecords {
			res.Err = err
			return res
		}
		return fail("restore", err)
	}

	if opts.SubsampleRate > 0 && opts.SubsampleRate < 1 {
		ext = subsampleExtraction(ext, opts.SubsampleRate)
	}
	res.Stats.Pairs = len(ext.R1)
	res.Stats.Singletons = len(ext.Singletons)
	if err = ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	res.Files, err = emitSample(ctx, sample.Name, ext, opts)
	if err != nil {
		return fail("emit", err)
	}
	return res
}

// restorePaired partitions a paired sample's records by category,
// then collates, extracts, and joins the mapped and unmapped branches.
func restorePaired(sample Sample, provider bamprovider.Provider, opts Opts) (Extraction, Stats, error) {
	iter := provider.NewIterator()
	part, err := partitionRecords(sample.Name, iter)
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	stats := Stats{
		Primary:  part.Primary,
		Excluded: part.Excluded,
		Dropped:  part.Dropped,
	}
	for c := range part.Categories {
		stats.Categories[c] = len(part.Categories[c])
	}
	if err != nil {
		part.free()
		return Extraction{}, stats, err
	}
	if part.Primary+part.Excluded == 0 {
		return Extraction{}, stats, ErrNoRecords
	}
	ext, err := extractBranches(part, opts)
	return ext, stats, err
}

// restoreSingle converts every primary record of a single-end sample
// to a singleton read.  There is no pairing to recover, so records
// flow straight from the scan to extraction, mapped or not.
func restoreSingle(sample Sample, provider bamprovider.Provider) (Extraction, Stats, error) {
	iter := provider.NewIterator()
	recs, excluded, err := readPrimary(iter)
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	stats := Stats{Primary: len(recs), Excluded: excluded}
	if err != nil {
		for _, r := range recs {
			sam.PutInFreePool(r)
		}
		return Extraction{}, stats, err
	}
	if len(recs)+excluded == 0 {
		return Extraction{}, stats, ErrNoRecords
	}
	return extractSingle(recs), stats, nil
}
