// Copyright (c) 2014 Utkan Güngördü <utkan@freeconsole.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package cuckoo implements the single-item-per-bin cuckoo hash table with
// a fixed-size overflow stash that the set-intersection protocol's
// receiver side uses to place its input set. Each item has NumHashes
// candidate bins; collision resolution is a bounded random walk, falling
// back to the stash when the walk doesn't settle.
package cuckoo

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/fimbault/psz/digest"
)

// ErrFull is returned by Insert when an item can settle into neither a
// bin nor the stash.
var ErrFull = errors.New("cuckoo: table and stash both full")

// Entry is one occupied (or empty, if Used is false) slot in the table.
type Entry struct {
	Token     digest.Token
	Value     int
	HashIndex int // which of the NumHashes candidates placed Token in a bin; meaningless for stash entries.
	Used      bool
}

// Source is the randomness the table needs to run its eviction walk.
// *rng.Source satisfies this.
type Source interface {
	IntN(n int) int
}

// Table is a cuckoo hash table over digest.Token keys, sized up front for
// an expected item count.
type Table struct {
	bins  []Entry
	stash []Entry
	rng   Source
}

// NewTable allocates a table sized for n items, per sizingFor.
func NewTable(n int, source Source) *Table {
	m, s := sizingFor(n)
	return &Table{
		bins:  make([]Entry, m),
		stash: make([]Entry, s),
		rng:   source,
	}
}

// NumBins returns the number of bins the table was allocated with.
func (t *Table) NumBins() int { return len(t.bins) }

// NumStash returns the number of stash slots the table was allocated with.
func (t *Table) NumStash() int { return len(t.stash) }

// Bin returns the entry at bin index i, and whether it's occupied.
func (t *Table) Bin(i int) (Entry, bool) { return t.bins[i], t.bins[i].Used }

// Stash returns the entry at stash slot i, and whether it's occupied.
func (t *Table) Stash(i int) (Entry, bool) { return t.stash[i], t.stash[i].Used }

// Insert places token into the table, tagged with value (typically the
// token's index in the caller's original item list). It returns ErrFull
// if the random walk can't settle the item into a bin and the stash is
// also full.
func (t *Table) Insert(token digest.Token, value int) error {
	cur := Entry{Token: token, Value: value, Used: true}

	maxSteps := (1 + bits.Len(uint(len(t.bins)))) * randomWalkCoefficient
	for step := 0; step <= maxSteps; step++ {
		for h := 0; h < NumHashes; h++ {
			b := Bin(cur.Token, h, len(t.bins))
			if !t.bins[b].Used {
				cur.HashIndex = h
				t.bins[b] = cur
				return nil
			}
		}

		h := t.rng.IntN(NumHashes)
		b := Bin(cur.Token, h, len(t.bins))
		cur.HashIndex = h
		evicted := t.bins[b]
		t.bins[b] = cur
		cur = evicted
	}

	for i := range t.stash {
		if !t.stash[i].Used {
			cur.Used = true
			t.stash[i] = cur
			return nil
		}
	}

	return fmt.Errorf("cuckoo: insert: %w", ErrFull)
}
