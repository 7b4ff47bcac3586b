package fastq

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io/ioutil"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// downsampleInput renders n read pairs and returns the names alongside
// the raw R1 and R2 file contents.
func downsampleInput(n int) (names []string, r1, r2 []byte) {
	var b1, b2 bytes.Buffer
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("read-%04d", i)
		names = append(names, name)
		fmt.Fprintf(&b1, "@%s\nACGTACGT\n+\nIIIIIIII\n", name)
		fmt.Fprintf(&b2, "@%s\nTGCATGCA\n+\nJJJJJJJJ\n", name)
	}
	return names, b1.Bytes(), b2.Bytes()
}

// writeGz writes data gzip-compressed behind a plain filename, so
// reading it exercises the opener's format sniffing.
func writeGz(t *testing.T, path string, data []byte) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0600))
}

func TestKeepRead(t *testing.T) {
	names := []string{"a", "b", "read-0001", "NB500956:89:HW2FHBGX2:1:11101:25648:1069"}
	for _, name := range names {
		expect.EQ(t, KeepRead(name, 1.0), true, "name %s", name)
		expect.EQ(t, KeepRead(name, 1.5), true, "name %s", name)
		expect.EQ(t, KeepRead(name, 0.0), false, "name %s", name)
		expect.EQ(t, KeepRead(name, -0.5), false, "name %s", name)
		expect.EQ(t, KeepRead(name, 0.5), KeepRead(name, 0.5), "name %s", name)
	}
	// Monotone in rate: a read kept at some rate stays kept at every
	// higher rate.
	rates := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("mono-%d", i)
		kept := false
		for _, rate := range rates {
			k := KeepRead(name, rate)
			if kept {
				expect.EQ(t, k, true, "name %s dropped at rate %v after being kept", name, rate)
			}
			kept = kept || k
		}
	}
	// The hash spreads: at rate 0.5 roughly half of a large name set
	// survives.
	n := 0
	for i := 0; i < 1000; i++ {
		if KeepRead(fmt.Sprintf("spread-%d", i), 0.5) {
			n++
		}
	}
	expect.GE(t, n, 350)
	expect.LE(t, n, 650)
}

func TestDownsample(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	const nReads = 200
	names, r1In, r2In := downsampleInput(nReads)
	r1Path := fmt.Sprintf("%s/r1.fastq", tempDir)
	r2Path := fmt.Sprintf("%s/r2.fastq", tempDir)
	writeGz(t, r1Path, r1In)
	writeGz(t, r2Path, r2In)

	for _, rate := range []float64{0.0, 0.3, 1.0, 1.2} {
		var r1Out, r2Out bytes.Buffer
		assert.NoError(t, Downsample(ctx, rate, r1Path, r2Path, &r1Out, &r2Out))

		var want1, want2 bytes.Buffer
		for _, name := range names {
			if KeepRead(name, rate) {
				fmt.Fprintf(&want1, "@%s\nACGTACGT\n+\nIIIIIIII\n", name)
				fmt.Fprintf(&want2, "@%s\nTGCATGCA\n+\nJJJJJJJJ\n", name)
			}
		}
		expect.EQ(t, r1Out.String(), want1.String(), "rate %v", rate)
		expect.EQ(t, r2Out.String(), want2.String(), "rate %v", rate)
	}
}

func TestDownsampleMismatch(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	_, r1Long, r2Long := downsampleInput(20)
	_, r1Short, _ := downsampleInput(10)

	write := func(name string, data []byte) string {
		path := fmt.Sprintf("%s/%s.fastq", tempDir, name)
		writeGz(t, path, data)
		return path
	}
	longR1 := write("long_r1", r1Long)
	longR2 := write("long_r2", r2Long)
	shortR1 := write("short_r1", r1Short)
	truncR1 := write("trunc_r1", r1Long[:len(r1Long)-30])

	var out1, out2 bytes.Buffer
	err := Downsample(ctx, 1.0, longR1, shortR1, &out1, &out2)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	assert.EQ(t, err.Error(), "more reads in R1 input than in R2 input")

	err = Downsample(ctx, 1.0, shortR1, longR2, &out1, &out2)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	assert.EQ(t, err.Error(), "more reads in R2 input than in R1 input")

	err = Downsample(ctx, 1.0, truncR1, longR2, &out1, &out2)
	if err == nil {
		t.Fatal("expected truncation error")
	}
	assert.EQ(t, err.Error(), "error reading R1 input: short FASTQ file")
}

func TestDownsampleToCount(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	const nReads = 100
	_, r1In, r2In := downsampleInput(nReads)
	r1Path := fmt.Sprintf("%s/r1.fastq", tempDir)
	r2Path := fmt.Sprintf("%s/r2.fastq", tempDir)
	writeGz(t, r1Path, r1In)
	writeGz(t, r2Path, r2In)

	// A target at or above the input size copies everything.
	var r1Out, r2Out bytes.Buffer
	assert.NoError(t, DownsampleToCount(ctx, nReads, r1Path, r2Path, &r1Out, &r2Out))
	expect.EQ(t, r1Out.String(), string(r1In))
	expect.EQ(t, r2Out.String(), string(r2In))

	r1Out.Reset()
	r2Out.Reset()
	assert.NoError(t, DownsampleToCount(ctx, 0, r1Path, r2Path, &r1Out, &r2Out))
	expect.EQ(t, r1Out.Len(), 0)
	expect.EQ(t, r2Out.Len(), 0)

	// A fractional target behaves exactly like the equivalent rate.
	r1Out.Reset()
	r2Out.Reset()
	assert.NoError(t, DownsampleToCount(ctx, nReads/2, r1Path, r2Path, &r1Out, &r2Out))
	var wantR1, wantR2 bytes.Buffer
	assert.NoError(t, Downsample(ctx, 0.5, r1Path, r2Path, &wantR1, &wantR2))
	expect.EQ(t, r1Out.String(), wantR1.String())
	expect.EQ(t, r2Out.String(), wantR2.String())

	// Empty inputs are a no-op, not an error.
	emptyR1 := fmt.Sprintf("%s/empty_r1.fastq", tempDir)
	emptyR2 := fmt.Sprintf("%s/empty_r2.fastq", tempDir)
	writeGz(t, emptyR1, nil)
	writeGz(t, emptyR2, nil)
	r1Out.Reset()
	r2Out.Reset()
	assert.NoError(t, DownsampleToCount(ctx, 10, emptyR1, emptyR2, &r1Out, &r2Out))
	expect.EQ(t, r1Out.Len(), 0)
}
