package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grailbio/bam2fastq"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

const sampleArgsHelp = `
Each <sample> is either name=path or a bare path to a BAM file.  A bare
path names the sample after the file, extension stripped, so
"a/b/NA12878.bam" becomes sample "NA12878".`

// parseSampleArgs turns the positional arguments of restore and
// classify into Samples.
func parseSampleArgs(argv []string) ([]bam2fastq.Sample, error) {
	samples := make([]bam2fastq.Sample, 0, len(argv))
	seen := map[string]bool{}
	for _, arg := range argv {
		var s bam2fastq.Sample
		if i := strings.IndexByte(arg, '='); i >= 0 {
			s = bam2fastq.Sample{Name: arg[:i], Path: arg[i+1:]}
		} else {
			base := filepath.Base(arg)
			s = bam2fastq.Sample{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: arg}
		}
		if s.Name == "" || s.Path == "" {
			return nil, fmt.Errorf("malformed sample %q, expect name=path or a path", arg)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate sample name %q; samples sharing a name would overwrite each other's outputs", s.Name)
		}
		seen[s.Name] = true
		samples = append(samples, s)
	}
	return samples, nil
}

func newCmdRestore() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "restore",
		Short:    "Restore FASTQ files from BAM alignments",
		ArgsName: "<sample>...",
		ArgsLong: sampleArgsHelp,
	}
	opts := bam2fastq.DefaultOpts
	cmd.Flags.StringVar(&opts.OutputDir, "output-dir", opts.OutputDir,
		"Directory receiving the FASTQ files. A local directory is created if it does not exist.")
	cmd.Flags.BoolVar(&opts.GzipOutput, "gzip", false,
		"Gzip-compress the output files and append .gz to their names")
	cmd.Flags.IntVar(&opts.ClassifyWindow, "classify-window", opts.ClassifyWindow,
		"Number of leading records inspected to decide whether a sample is paired-end")
	cmd.Flags.Float64Var(&opts.PairedFraction, "paired-fraction", opts.PairedFraction,
		"Minimum fraction of paired-flagged records in the classify window for a sample to count as paired-end")
	cmd.Flags.BoolVar(&opts.NameSuffix, "name-suffix", false,
		"Append /1 and /2 to the names of paired reads")
	cmd.Flags.Float64Var(&opts.SubsampleRate, "subsample-rate", opts.SubsampleRate,
		"Keep approximately this fraction of reads, selected deterministically by read name so that mates stay together; 1 keeps everything")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism,
		"Maximum number of samples restored concurrently")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("restore takes at least one <sample> argument")
		}
		samples, err := parseSampleArgs(argv)
		if err != nil {
			return err
		}
		results, err := bam2fastq.Run(vcontext.Background(), samples, opts)
		for _, res := range results {
			if res.Err != nil {
				log.Error.Printf("%s: %v", res.Sample.Name, res.Err)
				continue
			}
			files := "no output files (all reads filtered)"
			if len(res.Files) > 0 {
				files = strings.Join(res.Files, " ")
			}
			log.Printf("%s: %s, %d pairs, %d singletons -> %s",
				res.Sample.Name, res.Class.Class, res.Stats.Pairs, res.Stats.Singletons, files)
		}
		return err
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bio-bam2fastq",
		Short:    "Restore FASTQ reads from BAM alignments",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRestore(),
			newCmdClassify(),
		},
	})
}
