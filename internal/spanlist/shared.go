package spanlist

import (
	"slices"
)

// sharedTable collects distinct shared values in first-occurrence order.
type sharedTable[S any, K comparable] struct {
	keys   []K
	values []S
	index  map[K]int
}

func newSharedTable[S any, K comparable]() *sharedTable[S, K] {
	return &sharedTable[S, K]{index: make(map[K]int)}
}

// add records the value for key unless key was seen before. value is only
// called for new keys.
func (t *sharedTable[S, K]) add(key K, value func() S) {
	if _, ok := t.index[key]; ok {
		return
	}
	t.index[key] = len(t.values)
	t.keys = append(t.keys, key)
	t.values = append(t.values, value())
}

func (t *sharedTable[S, K]) sortByValue(cmp func(a, b S) int) {
	t.reorder(func(a, b int) int { return cmp(t.values[a], t.values[b]) })
}

func (t *sharedTable[S, K]) sortByKey(cmp func(a, b K) int) {
	t.reorder(func(a, b int) int { return cmp(t.keys[a], t.keys[b]) })
}

// reorder stable-sorts the table and rebuilds the key index.
func (t *sharedTable[S, K]) reorder(cmp func(a, b int) int) {
	order := make([]int, len(t.values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, cmp)

	keys := make([]K, len(order))
	values := make([]S, len(order))
	for to, from := range order {
		keys[to] = t.keys[from]
		values[to] = t.values[from]
		t.index[keys[to]] = to
	}
	t.keys, t.values = keys, values
}
