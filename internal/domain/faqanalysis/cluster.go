package faqanalysis

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

const maxKeywords = 3

// scorer is the read-only view of an Index used while scoring pairs.
type scorer interface {
	Score(i, j int) float64
}

// LinkPairs scores every pair (i, j) with i < j among the first n indexed texts and keeps
// those at or above threshold. Rows fan out over at most workers goroutines; each row
// writes only its own slice, and the call returns after every row is scored.
func LinkPairs(ctx context.Context, ix scorer, ids []int64, threshold float64, workers int) ([][]SimilarityPair, error) {
	n := len(ids)
	rows := make([][]SimilarityPair, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var row []SimilarityPair
			for j := i + 1; j < n; j++ {
				if (j-i)%512 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if score := ix.Score(i, j); score >= threshold {
					row = append(row, SimilarityPair{A: ids[i], B: ids[j], Score: score})
				}
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// BuildClusters groups entries into connected components of the similarity graph.
// entries must be sorted by id and indexed at the same positions in ix.
func BuildClusters(ctx context.Context, entries []faq.Entry, ix scorer, threshold float64, workers int) ([]Cluster, error) {
	ids := make([]int64, len(entries))
	pos := make(map[int64]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		pos[e.ID] = i
	}
	rows, err := LinkPairs(ctx, ix, ids, threshold, workers)
	if err != nil {
		return nil, err
	}
	uf := newUnionFind(len(entries))
	for _, row := range rows {
		for _, pair := range row {
			uf.union(pos[pair.A], pos[pair.B])
		}
	}
	return assembleClusters(entries, uf.groups()), nil
}

func assembleClusters(entries []faq.Entry, groups [][]int) []Cluster {
	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, newCluster(entries, members))
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].RepresentativeID < clusters[j].RepresentativeID
	})
	return clusters
}

func newCluster(entries []faq.Entry, members []int) Cluster {
	rep := entries[members[0]]
	c := Cluster{
		EntryIDs:    make([]int64, 0, len(members)),
		CategoryIDs: []int64{},
	}
	categories := make(map[int64]struct{})
	termFreq := make(map[string]int)
	for _, m := range members {
		e := entries[m]
		if preferRepresentative(e, rep) {
			rep = e
		}
		c.EntryIDs = append(c.EntryIDs, e.ID)
		c.HelpfulCount += e.HelpfulCount
		c.UnhelpfulCount += e.UnhelpfulCount
		c.AskCount += e.AskCount
		if e.LastAskedAt.After(c.LastAskedAt) {
			c.LastAskedAt = e.LastAskedAt
		}
		if e.CategoryID != 0 {
			categories[e.CategoryID] = struct{}{}
		}
		for term := range faq.Terms(e.Question) {
			termFreq[term]++
		}
	}
	sort.Slice(c.EntryIDs, func(i, j int) bool { return c.EntryIDs[i] < c.EntryIDs[j] })
	for id := range categories {
		c.CategoryIDs = append(c.CategoryIDs, id)
	}
	sort.Slice(c.CategoryIDs, func(i, j int) bool { return c.CategoryIDs[i] < c.CategoryIDs[j] })

	c.ID = fmt.Sprintf("c-%d", rep.ID)
	c.RepresentativeID = rep.ID
	c.Representative = rep.Question
	c.FeedbackScore = c.HelpfulCount - c.UnhelpfulCount
	c.Keywords = topTerms(termFreq, maxKeywords)
	return c
}

// preferRepresentative orders candidates by net feedback, then question text, then id.
func preferRepresentative(a, b faq.Entry) bool {
	sa, sb := a.HelpfulCount-a.UnhelpfulCount, b.HelpfulCount-b.UnhelpfulCount
	if sa != sb {
		return sa > sb
	}
	if a.Question != b.Question {
		return a.Question < b.Question
	}
	return a.ID < b.ID
}

func topTerms(freq map[string]int, limit int) []string {
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// groups returns the components with members in ascending position order, ordered by
// their smallest member.
func (uf *unionFind) groups() [][]int {
	byRoot := make(map[int]int)
	var out [][]int
	for i := range uf.parent {
		root := uf.find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(out)
			byRoot[root] = idx
			out = append(out, nil)
		}
		out[idx] = append(out[idx], i)
	}
	return out
}
