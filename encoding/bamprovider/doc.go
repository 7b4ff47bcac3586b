// Package bamprovider provides utilities for scanning the records of a
// BAM file sequentially, in file order.
//
// Provider is the interface to a record source. BAMProvider implements it
// for BAM files without requiring an index; NewFakeProvider serves
// in-memory records for tests.
package bamprovider
