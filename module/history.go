package module

import (
	lru "github.com/hashicorp/golang-lru"

	"eople/bytecode"
)

// historyCapacity bounds how many prior versions of each hot-swapped
// function a Registry remembers, grounded on SPEC_FULL.md §4.13 and the
// ethereum/go-ethereum family's pervasive use of github.com/hashicorp/
// golang-lru for exactly this "keep recent N, evict the rest" shape (see
// e.g. core/tx_noncer.go's lru.New-backed nonce cache).
const historyCapacity = 32

// history is a per-function-name bounded record of previously installed
// bodies, consulted by a REPL session or embedder wanting to show "what
// did this function look like two versions ago" without unbounded growth.
type history struct {
	cache *lru.Cache
}

func newHistory() *history {
	c, err := lru.New(historyCapacity)
	if err != nil {
		// historyCapacity is a positive compile-time constant; lru.New only
		// fails for size <= 0.
		panic(err)
	}
	return &history{cache: c}
}

// record appends old to name's history, dropping that name's oldest version
// once it holds more than historyCapacity. The LRU itself also holds at most
// historyCapacity names and evicts the least recently used name when full.
func (h *history) record(name string, old *bytecode.Function) {
	versions, _ := h.cache.Get(name)
	var list []*bytecode.Function
	if versions != nil {
		list = versions.([]*bytecode.Function)
	}
	list = append(list, old)
	if len(list) > historyCapacity {
		list = list[len(list)-historyCapacity:]
	}
	h.cache.Add(name, list)
}

// versions returns every recorded prior body for name, oldest first, or nil
// if name was never hot-swapped or its history was evicted.
func (h *history) versions(name string) []*bytecode.Function {
	versions, ok := h.cache.Get(name)
	if !ok {
		return nil
	}
	return versions.([]*bytecode.Function)
}
