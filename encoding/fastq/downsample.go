package fastq

import (
	"context"
	"io"

	"github.com/grailbio/base/unsafe"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// downsampleKey seeds the read-name hash. It is fixed (all zeros) so
// that a given rate selects the same reads on every run.
var downsampleKey [highwayhash.Size]byte

// KeepRead reports whether a read survives downsampling at the given
// rate. The decision hashes the read name and keeps the read iff the
// hash, scaled to [0, 1), falls below rate. Hashing the name rather
// than drawing a random number makes the selection deterministic and
// mate-coherent: the two sides of a pair share a name, so they are
// always kept or discarded together, and repeated runs over the same
// input select the same reads. Rates at or above 1 keep everything;
// rates at or below 0 keep nothing.
func KeepRead(name string, rate float64) bool {
	h := highwayhash.Sum64(unsafe.StringToBytes(name), downsampleKey[:])
	return float64(h)/(1<<64) < rate
}

// Downsample copies read pairs from r1Path and r2Path to r1Out and
// r2Out, keeping the pairs admitted by KeepRead at the given rate.
// Compressed inputs are decompressed transparently. The two inputs
// must contain the same number of reads.
func Downsample(ctx context.Context, rate float64, r1Path, r2Path string, r1Out, r2Out io.Writer) (err error) {
	r1Scanner, r1Close, err := OpenScanner(ctx, r1Path, All)
	if err != nil {
		return err
	}
	defer closeAndReport(r1Close, &err)
	r2Scanner, r2Close, err := OpenScanner(ctx, r2Path, All)
	if err != nil {
		return err
	}
	defer closeAndReport(r2Close, &err)

	w1, w2 := NewWriter(r1Out), NewWriter(r2Out)
	var r1, r2 Read
	for {
		ok1 := r1Scanner.Scan(&r1)
		ok2 := r2Scanner.Scan(&r2)
		if !ok1 || !ok2 {
			if err := r1Scanner.Err(); err != nil {
				return errors.Wrap(err, "error reading R1 input")
			}
			if err := r2Scanner.Err(); err != nil {
				return errors.Wrap(err, "error reading R2 input")
			}
			if ok1 {
				return errors.New("more reads in R1 input than in R2 input")
			}
			if ok2 {
				return errors.New("more reads in R2 input than in R1 input")
			}
			return nil
		}
		if !KeepRead(r1.Name(), rate) {
			continue
		}
		if err := w1.Write(&r1); err != nil {
			return errors.Wrap(err, "error writing R1 output")
		}
		if err := w2.Write(&r2); err != nil {
			return errors.Wrap(err, "error writing R2 output")
		}
	}
}

// DownsampleToCount is Downsample with the rate derived from a target
// read count: it keeps approximately count pairs, whatever the input
// size. A count at or above the input size copies everything. The R1
// input is scanned twice, once to count and once to select.
func DownsampleToCount(ctx context.Context, count int64, r1Path, r2Path string, r1Out, r2Out io.Writer) error {
	total, err := countReads(ctx, r1Path)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	return Downsample(ctx, float64(count)/float64(total), r1Path, r2Path, r1Out, r2Out)
}

func countReads(ctx context.Context, path string) (n int64, err error) {
	scanner, closer, err := OpenScanner(ctx, path, ID)
	if err != nil {
		return 0, err
	}
	defer closeAndReport(closer, &err)
	var read Read
	for scanner.Scan(&read) {
		n++
	}
	return n, scanner.Err()
}

func closeAndReport(closer func() error, err *error) {
	if e := closer(); e != nil && *err == nil {
		*err = e
	}
}
