package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/grailbio/bam2fastq"
	"github.com/grailbio/bam2fastq/encoding/bamprovider"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

// classifyRow is one line of the classify report.
type classifyRow struct {
	Sample   string `tsv:"SAMPLE"`
	Path     string `tsv:"PATH"`
	Sampled  int64  `tsv:"SAMPLED"`
	Paired   int64  `tsv:"PAIRED"`
	Fraction string `tsv:"FRACTION"`
	Class    string `tsv:"CLASS"`
}

func newCmdClassify() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "classify",
		Short:    "Report the pairedness of each sample without writing FASTQ",
		ArgsName: "<sample>...",
		ArgsLong: sampleArgsHelp,
	}
	outFlag := cmd.Flags.String("o", "",
		"Output TSV path. Empty writes the report to stdout.")
	windowFlag := cmd.Flags.Int("classify-window", bam2fastq.DefaultOpts.ClassifyWindow,
		"Number of leading records inspected per sample")
	fractionFlag := cmd.Flags.Float64("paired-fraction", bam2fastq.DefaultOpts.PairedFraction,
		"Minimum fraction of paired-flagged records for a sample to count as paired-end")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("classify takes at least one <sample> argument")
		}
		if *windowFlag < 1 {
			return fmt.Errorf("classify window must be positive, got %d", *windowFlag)
		}
		if *fractionFlag <= 0 || *fractionFlag > 1 {
			return fmt.Errorf("paired fraction must be in (0, 1], got %v", *fractionFlag)
		}
		samples, err := parseSampleArgs(argv)
		if err != nil {
			return err
		}
		return classifySamples(samples, *windowFlag, *fractionFlag, *outFlag)
	})
	return cmd
}

func classifySamples(samples []bam2fastq.Sample, window int, fraction float64, outPath string) (err error) {
	ctx := vcontext.Background()
	w := io.Writer(os.Stdout)
	if outPath != "" {
		var dst file.File
		if dst, err = file.Create(ctx, outPath); err != nil {
			return err
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w = dst.Writer(ctx)
	}
	tsvWriter := tsv.NewRowWriter(w)

	failed := 0
	for _, sample := range samples {
		class, cerr := classifySample(sample, window, fraction)
		if cerr != nil {
			log.Error.Printf("%s: classify %s: %v", sample.Name, sample.Path, cerr)
			failed++
			continue
		}
		log.Printf("%s: %s (%d of %d records paired)",
			sample.Name, class.Class, class.PairedRecords, class.Sampled)
		row := classifyRow{
			Sample:   sample.Name,
			Path:     sample.Path,
			Sampled:  int64(class.Sampled),
			Paired:   int64(class.PairedRecords),
			Fraction: strconv.FormatFloat(class.Fraction(), 'f', 4, 64),
			Class:    class.Class.String(),
		}
		if err = tsvWriter.Write(&row); err != nil {
			return err
		}
	}
	if err = tsvWriter.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d samples failed", failed, len(samples))
	}
	return nil
}

func classifySample(sample bam2fastq.Sample, window int, fraction float64) (bam2fastq.Classification, error) {
	provider := bamprovider.NewProvider(sample.Path)
	class, err := bam2fastq.Classify(provider, window, fraction)
	if cerr := provider.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return class, err
}
