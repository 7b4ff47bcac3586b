package fastq

import "io"

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	n   int64
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	if w.err == nil {
		w.n++
	}
	return w.err
}

// N returns the number of reads written so far.
func (w *Writer) N() int64 { return w.n }

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

// PairWriter writes R1 and R2 streams in lockstep. Each WritePair call
// emits one read to each side and fails if the two reads do not share
// a name, so the two outputs always hold the same reads in the same
// order.
type PairWriter struct {
	r1, r2 *Writer
}

// NewPairWriter constructs a PairWriter emitting R1 reads to w1 and R2
// reads to w2.
func NewPairWriter(w1, w2 io.Writer) *PairWriter {
	return &PairWriter{r1: NewWriter(w1), r2: NewWriter(w2)}
}

// WritePair writes one read to each side. It returns ErrDiscordant if
// the reads' names differ, and otherwise the first IO error
// encountered.
func (w *PairWriter) WritePair(r1, r2 *Read) error {
	if r1.Name() != r2.Name() {
		return ErrDiscordant
	}
	if err := w.r1.Write(r1); err != nil {
		return err
	}
	return w.r2.Write(r2)
}

// N returns the number of pairs written so far.
func (w *PairWriter) N() int64 { return w.r1.n }
