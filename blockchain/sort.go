package blockchain

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/mypivxwallet/wallet_engine/transaction"
)

var ErrCyclicDependency = errors.New("cyclic graph")

// CyclicDependencyError lists the transactions left in the graph after sorting.
type CyclicDependencyError struct {
	TxIDs []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%v: %d transactions spend each other: %v", ErrCyclicDependency, len(e.TxIDs), e.TxIDs)
}

func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}

// SortBlock orders the transactions of one block newest first: a spender always comes
// before the transactions it spends from. Independent transactions keep reverse input order.
// Duplicated txids are dropped.
func SortBlock(txs []*transaction.Transaction) ([]*transaction.Transaction, error) {
	nodes := make([]*transaction.Transaction, 0, len(txs))
	ids := make([]string, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		txid := tx.TxID()
		if _, dup := seen[txid]; dup {
			continue
		}
		seen[txid] = struct{}{}
		nodes = append(nodes, tx)
		ids = append(ids, txid)
	}
	spends := make([][]string, len(nodes))
	for i, tx := range nodes {
		for _, in := range tx.Vin {
			spends[i] = append(spends[i], in.Outpoint.TxID)
		}
	}

	order, err := sortGraph(ids, spends)
	if err != nil {
		return nil, err
	}
	sorted := make([]*transaction.Transaction, len(order))
	for k, i := range order {
		sorted[k] = nodes[i]
	}
	return sorted, nil
}

// sortGraph returns node positions with every spender ahead of what it spends.
// spends[i] lists the ids node i consumes; ids outside the group are ignored.
func sortGraph(ids []string, spends [][]string) ([]int, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	// parents[i] are the in-group nodes spent by i, claims[j] counts unprocessed spenders of j
	parents := make([][]int, len(ids))
	claims := make([]int, len(ids))
	for i := range ids {
		seen := make(map[int]struct{})
		for _, id := range spends[i] {
			j, ok := index[id]
			if !ok {
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			parents[i] = append(parents[i], j)
			claims[j]++
		}
	}

	// ready is kept ascending, the highest input position is emitted first
	var ready []int
	for i := range ids {
		if claims[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, len(ids))
	for len(ready) > 0 {
		i := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		order = append(order, i)
		for _, j := range parents[i] {
			claims[j]--
			if claims[j] == 0 {
				pos := sort.SearchInts(ready, j)
				ready = slices.Insert(ready, pos, j)
			}
		}
	}

	if len(order) != len(ids) {
		var left []string
		for i, id := range ids {
			if claims[i] > 0 {
				left = append(left, id)
			}
		}
		return nil, &CyclicDependencyError{TxIDs: left}
	}
	return order, nil
}

// SortTransactions groups txs by height, newest group first with unconfirmed ones on top,
// and sorts every group with SortBlock.
func SortTransactions(txs []*transaction.Transaction) ([]*transaction.Transaction, error) {
	groups := make(map[int][]*transaction.Transaction)
	var heights []int
	for _, tx := range txs {
		h := tx.BlockHeight
		if !tx.IsConfirmed() {
			h = -1
		}
		if _, ok := groups[h]; !ok {
			heights = append(heights, h)
		}
		groups[h] = append(groups[h], tx)
	}
	sort.Slice(heights, func(a, b int) bool {
		ha, hb := heights[a], heights[b]
		if ha == -1 || hb == -1 {
			return ha == -1 && hb != -1
		}
		return ha > hb
	})

	out := make([]*transaction.Transaction, 0, len(txs))
	for _, h := range heights {
		sorted, err := SortBlock(groups[h])
		if err != nil {
			return nil, fmt.Errorf("height %d: %w", h, err)
		}
		out = append(out, sorted...)
	}
	return out, nil
}
