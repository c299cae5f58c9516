package menu

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// StaticSearcher ranks an in-memory menu by word overlap with the query.
// Language is ignored; the menu is searched as written.
type StaticSearcher struct {
	items []Item
	docs  []map[string]struct{}
	topK  int
}

func NewStaticSearcher(items []Item, topK int) *StaticSearcher {
	if topK <= 0 {
		topK = 5
	}
	docs := make([]map[string]struct{}, len(items))
	for i, it := range items {
		docs[i] = tokenSet(it.Text())
	}
	return &StaticSearcher{items: items, docs: docs, topK: topK}
}

// Search returns up to topK items sharing at least one word with the query.
// A query that matches nothing returns the head of the menu so a general
// "what do you have" question still gets an answer.
func (s *StaticSearcher) Search(ctx context.Context, query, language string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := tokenSet(query)
	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, doc := range s.docs {
		n := 0
		for tok := range q {
			if _, ok := doc[tok]; ok {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{idx: i, score: n})
		}
	}
	if len(hits) == 0 {
		n := min(s.topK, len(s.items))
		out := make([]Item, n)
		copy(out, s.items[:n])
		return out, nil
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > s.topK {
		hits = hits[:s.topK]
	}
	out := make([]Item, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.items[h.idx])
	}
	return out, nil
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "is": {}, "are": {},
	"do": {}, "you": {}, "have": {}, "what": {}, "on": {}, "of": {}, "with": {},
	"menu": {}, "category": {}, "price": {}, "tags": {}, "allergens": {},
}

func tokenSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

var _ Searcher = (*StaticSearcher)(nil)
