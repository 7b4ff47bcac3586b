package bamprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// BAMProvider implements Provider for BAM files. The filename is allowed
// to be an S3 URL, in which case the data will be read from S3. Otherwise
// the data will be read from the local filesystem. No BAM index is
// required: every iterator reads the stream sequentially from the first
// record.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	err  errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader

	// limit is the number of records left to yield; <0 means unbounded.
	limit int
	err   error
	next  *sam.Record
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close()
	b.header = reader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	if b.nActive > 0 {
		log.Panicf("%d iterators still active for %+v", b.nActive, b)
	}
	return b.err.Err()
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator() Iterator {
	return b.newIterator(-1)
}

// NewHeadIterator implements the Provider interface.
func (b *BAMProvider) NewHeadIterator(limit int) Iterator {
	if limit <= 0 {
		log.Panicf("%s: nonpositive head limit %d", b.Path, limit)
	}
	return b.newIterator(limit)
}

// newIterator opens the BAM file and positions a reader at the first
// record. On error, it returns an iterator with a non-nil err field.
func (b *BAMProvider) newIterator(limit int) *bamIterator {
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()

	iter := bamIterator{provider: b, limit: limit}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return &iter
	}
	iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1)
	return &iter
}

func (b *BAMProvider) freeIterator(i *bamIterator) {
	i.internalClose()
	b.mu.Lock()
	b.nActive--
	if b.nActive < 0 {
		log.Panicf("negative active count for %+v", b)
	}
	b.mu.Unlock()
}

func (i *bamIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	if i.limit == 0 {
		i.err = io.EOF
		return false
	}
	if i.next, i.err = i.reader.Read(); i.err != nil {
		return false
	}
	if i.limit > 0 {
		i.limit--
	}
	return true
}

func (i *bamIterator) Record() *sam.Record {
	return i.next
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	err := i.Err()
	i.provider.freeIterator(i)
	return err
}

func (i *bamIterator) internalClose() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
