package bam2fastq

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/bam2fastq/encoding/fastq"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

func outputPath(dir, sample, suffix string) string {
	if dir == "" {
		return sample + suffix
	}
	return fmt.Sprintf("%s/%s%s", dir, sample, suffix)
}

// outputPaths returns the sample's R1, R2, and singleton output paths.
func outputPaths(sample string, opts Opts) (r1, r2, single string) {
	ext := ".fq"
	if opts.GzipOutput {
		ext += ".gz"
	}
	r1 = outputPath(opts.OutputDir, sample, ".1"+ext)
	r2 = outputPath(opts.OutputDir, sample, ".2"+ext)
	single = outputPath(opts.OutputDir, sample, ".singleton"+ext)
	return
}

// removeStale deletes the output files a previous run may have left
// for the sample, compressed or not.  A leftover would otherwise
// masquerade as a fresh result whenever the current run suppresses
// the corresponding file.
func removeStale(ctx context.Context, sample string, opts Opts) error {
	for _, suffix := range []string{".1.fq", ".2.fq", ".singleton.fq"} {
		for _, ext := range []string{"", ".gz"} {
			path := outputPath(opts.OutputDir, sample, suffix+ext)
			if _, err := file.Stat(ctx, path); err != nil {
				continue
			}
			if err := file.Remove(ctx, path); err != nil {
				return errors.E(err, "remove stale output", path)
			}
		}
	}
	return nil
}

// createOutput creates path and returns the writer to encode reads to,
// gzip-compressing when gzipped is set.  The returned close function
// flushes and releases the file and reports any deferred IO error.
func createOutput(ctx context.Context, path string, gzipped bool) (io.Writer, func() error, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "create", path)
	}
	w := out.Writer(ctx)
	if !gzipped {
		return w, func() error { return out.Close(ctx) }, nil
	}
	gz := gzip.NewWriter(w)
	closer := func() error {
		err := gz.Close()
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
		return err
	}
	return gz, closer, nil
}

func deferClose(closer func() error, err *error) {
	if e := closer(); e != nil && *err == nil {
		*err = e
	}
}

// writePairs writes the R1 and R2 files in lockstep through the pair
// writer, which rejects pairs whose names disagree.
func writePairs(ctx context.Context, r1Path, r2Path string, r1, r2 []fastq.Read, gzipped bool) (err error) {
	if len(r1) != len(r2) {
		return errors.E("write pairs", fmt.Sprintf("%d R1 reads vs %d R2 reads", len(r1), len(r2)))
	}
	w1, c1, err := createOutput(ctx, r1Path, gzipped)
	if err != nil {
		return err
	}
	defer deferClose(c1, &err)
	w2, c2, err := createOutput(ctx, r2Path, gzipped)
	if err != nil {
		return err
	}
	defer deferClose(c2, &err)
	w := fastq.NewPairWriter(w1, w2)
	for i := range r1 {
		if err := w.WritePair(&r1[i], &r2[i]); err != nil {
			return errors.E(err, "write pair", r1[i].ID)
		}
	}
	return nil
}

func writeSingletons(ctx context.Context, path string, reads []fastq.Read, gzipped bool) (err error) {
	w, closer, err := createOutput(ctx, path, gzipped)
	if err != nil {
		return err
	}
	defer deferClose(closer, &err)
	fw := fastq.NewWriter(w)
	for i := range reads {
		if err := fw.Write(&reads[i]); err != nil {
			return errors.E(err, "write", reads[i].ID)
		}
	}
	return nil
}

// emitSample writes ext to the sample's output files and returns the
// paths written, in R1, R2, singleton order.  A file that would hold
// zero records is suppressed, never created.  On error the files
// already created are removed, so a sample's outputs either all exist
// or none do.
func emitSample(ctx context.Context, sample string, ext Extraction, opts Opts) (files []string, err error) {
	if err := removeStale(ctx, sample, opts); err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		for _, path := range files {
			if _, e := file.Stat(ctx, path); e != nil {
				continue
			}
			if e := file.Remove(ctx, path); e != nil {
				log.Error.Printf("%s: removing partial output %s: %v", sample, path, e)
			}
		}
		files = nil
	}()
	r1Path, r2Path, singlePath := outputPaths(sample, opts)
	if len(ext.R1) > 0 {
		files = append(files, r1Path, r2Path)
		if err = writePairs(ctx, r1Path, r2Path, ext.R1, ext.R2, opts.GzipOutput); err != nil {
			return files, err
		}
	}
	if len(ext.Singletons) > 0 {
		files = append(files, singlePath)
		if err = writeSingletons(ctx, singlePath, ext.Singletons, opts.GzipOutput); err != nil {
			return files, err
		}
	}
	return files, nil
}
