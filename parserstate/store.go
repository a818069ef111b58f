package parserstate

import "github.com/pkg/errors"

// ErrNotFound is returned by DurableStore.Get when a chain has no row yet.
var ErrNotFound = errors.New("parser state: chain not found")

// DurableStore is the relational-store contract parser state persists
// through, narrowed from storage/database/db_manager.go's DBManager
// interface shape to the single parser_state table named in spec.md §6.
type DurableStore interface {
	Get(chain string) (Row, error)
	Upsert(row Row) error
	ListChains() ([]string, error)
}

// FastStore is the write-through cache tier described in spec.md §4.8 —
// fast path, not durable on its own.
type FastStore interface {
	Get(chain string) (Row, bool)
	Set(row Row) error
}
