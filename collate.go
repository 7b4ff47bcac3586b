package bam2fastq

import (
	"sort"
	"sync"

	"blainsmith.com/go/seahash"
	psort "github.com/exascience/pargo/sort"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
)

const (
	numCollateShards = 256
	collateChunk     = 8192
)

// collateEntry is one input record together with its input index, so
// that arrival order survives concurrent insertion.
type collateEntry struct {
	idx int
	rec *sam.Record
}

// nameGroup is the records sharing one read name.  first is the input
// index of the earliest of them, which orders the groups.
type nameGroup struct {
	first   int
	entries []collateEntry
}

// collateShard holds the name groups whose name hashes to this shard.
type collateShard struct {
	mu     sync.Mutex
	groups map[string]*nameGroup
}

func (s *collateShard) add(idx int, r *sam.Record) {
	s.mu.Lock()
	g := s.groups[r.Name]
	if g == nil {
		g = &nameGroup{first: idx}
		s.groups[r.Name] = g
	} else if idx < g.first {
		g.first = idx
	}
	g.entries = append(g.entries, collateEntry{idx: idx, rec: r})
	s.mu.Unlock()
}

// groupSorter parallel-sorts name groups by first appearance.
type groupSorter []*nameGroup

func (s groupSorter) SequentialSort(i, j int) {
	sub := s[i:j]
	sort.Slice(sub, func(a, b int) bool { return sub[a].first < sub[b].first })
}

func (s groupSorter) NewTemp() psort.StableSorter {
	return groupSorter(make([]*nameGroup, len(s)))
}

func (s groupSorter) Len() int { return len(s) }

func (s groupSorter) Less(i, j int) bool { return s[i].first < s[j].first }

func (s groupSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(groupSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// collateByName reorders recs so that all records sharing a read name
// are contiguous.  The result is a permutation of the input, never a
// filter: groups appear in first-arrival order and records within a
// group keep their input order, so collating twice is a no-op.
//
// Records are grouped through a name-sharded map filled concurrently,
// then the groups are sorted back into input order.  The per-record
// input index makes the result independent of insertion interleaving
// and of map iteration order.
func collateByName(recs []*sam.Record) []*sam.Record {
	if len(recs) < 2 {
		return recs
	}
	shards := make([]collateShard, numCollateShards)
	for i := range shards {
		shards[i].groups = make(map[string]*nameGroup)
	}
	nChunks := (len(recs) + collateChunk - 1) / collateChunk
	err := traverse.Each(nChunks, func(c int) error {
		begin := c * collateChunk
		end := begin + collateChunk
		if end > len(recs) {
			end = len(recs)
		}
		for i := begin; i < end; i++ {
			r := recs[i]
			h := seahash.Sum64(unsafe.StringToBytes(r.Name))
			shards[h%numCollateShards].add(i, r)
		}
		return nil
	})
	if err != nil {
		log.Panicf("collate: %v", err)
	}

	groups := make([]*nameGroup, 0, len(recs))
	for i := range shards {
		for _, g := range shards[i].groups {
			sort.Slice(g.entries, func(a, b int) bool { return g.entries[a].idx < g.entries[b].idx })
			groups = append(groups, g)
		}
	}
	psort.StableSort(groupSorter(groups))

	out := make([]*sam.Record, 0, len(recs))
	for _, g := range groups {
		for _, e := range g.entries {
			out = append(out, e.rec)
		}
	}
	return out
}
