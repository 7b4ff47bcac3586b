package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// Provider is a source of alignment records read in file order. Thread
// safe.
type Provider interface {
	// GetHeader returns the header for the provided BAM data. The callee
	// must not modify the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over every record in the file, in
	// file order. Multiple iterators may be outstanding at once; each
	// reads the stream independently from the start.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// NewHeadIterator returns an iterator over at most limit records from
	// the start of the file. It is used to sample the head of the stream.
	//
	// REQUIRES: Close has not been called, limit > 0.
	NewHeadIterator(limit int) Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in file order. Thread compatible.
type Iterator interface {
	// Scan returns whether there are any records remaining in the
	// iterator, and if so, advances the iterator to the next record. If
	// the iterator reaches the end of the stream, Scan() returns false.
	// If an error occurs, Scan() returns false and the error can be
	// retrieved by calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encountered during iteration, or nil if no
	// error occurred. An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// NewProvider creates a Provider that reads the BAM file at path.
func NewProvider(path string) Provider {
	return &BAMProvider{Path: path}
}
