package iprange

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
)

// Range is an inclusive span of addresses with Start <= End.
type Range struct {
	Start Address
	End   Address
}

// FromCIDR derives the network and broadcast boundaries of c.
func FromCIDR(c CIDRBlock) Range {
	mask := c.Mask()
	start := uint32(c.Base) & mask
	end := start | ^mask
	return Range{Start: Address(start), End: Address(end)}
}

// FromBounds builds a range from two boundary addresses.
func FromBounds(start, end Address) (Range, error) {
	if start > end {
		return Range{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// ParseBounds parses both boundary texts and builds the range between them.
func ParseBounds(startText, endText string) (Range, error) {
	start, err := ParseAddress(startText)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
	}
	end, err := ParseAddress(endText)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
	}
	return FromBounds(start, end)
}

// ValidateRange reports whether both texts parse and start <= end.
func ValidateRange(startText, endText string) bool {
	_, err := ParseBounds(startText, endText)
	return err == nil
}

// Len is the number of addresses in r. It is a uint64 because the full
// address space holds 2^32 addresses.
func (r Range) Len() uint64 {
	return uint64(r.End) - uint64(r.Start) + 1
}

func (r Range) Contains(a Address) bool {
	return a >= r.Start && a <= r.End
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// All yields every address of r in ascending order. Each call starts a fresh
// sequence at r.Start. Nothing is materialized.
func (r Range) All() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for a := r.Start; ; a++ {
			if !yield(a) {
				return
			}
			// Checked before the increment so End == MaxAddress cannot wrap.
			if a == r.End {
				return
			}
		}
	}
}

// Iter returns a cursor positioned at r.Start.
func (r Range) Iter() *Iterator {
	it := &Iterator{r: r}
	it.Reset()
	return it
}

// Split partitions r into at most n contiguous, ascending sub-ranges whose
// union is r. Sizes differ by at most one address.
func (r Range) Split(n int) []Range {
	total := r.Len()
	if n <= 1 || total == 1 {
		return []Range{r}
	}
	if uint64(n) > total {
		n = int(total)
	}

	out := make([]Range, 0, n)
	chunk := total / uint64(n)
	extra := total % uint64(n)
	start := uint64(r.Start)
	for i := 0; i < n; i++ {
		size := chunk
		if uint64(i) < extra {
			size++
		}
		end := start + size - 1
		out = append(out, Range{Start: Address(start), End: Address(end)})
		start = end + 1
	}
	return out
}

// UniqueLen is the number of distinct addresses covered by ranges. Overlapping
// and adjacent ranges are merged, so nothing is enumerated.
func UniqueLen(ranges []Range) uint64 {
	if len(ranges) == 0 {
		return 0
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int {
		return cmp.Compare(a.Start, b.Start)
	})

	var total uint64
	cur := sorted[0]
	for _, r := range sorted[1:] {
		// uint64 so End+1 cannot wrap at MaxAddress.
		if uint64(r.Start) <= uint64(cur.End)+1 {
			if r.End > cur.End {
				cur.End = r.End
			}
			continue
		}
		total += cur.Len()
		cur = r
	}
	return total + cur.Len()
}

// Iterator walks a Range one address at a time.
type Iterator struct {
	r    Range
	next uint64
}

// Next returns the next address and true, or false once the range is
// exhausted. The position is tracked in 64 bits so it can step past
// MaxAddress without wrapping.
func (it *Iterator) Next() (Address, bool) {
	if it.next > uint64(it.r.End) {
		return 0, false
	}
	a := Address(it.next)
	it.next++
	return a, true
}

// Remaining is the number of addresses Next will still return.
func (it *Iterator) Remaining() uint64 {
	if it.next > uint64(it.r.End) {
		return 0
	}
	return uint64(it.r.End) - it.next + 1
}

// Reset rewinds the cursor to the start of the range.
func (it *Iterator) Reset() {
	it.next = uint64(it.r.Start)
}
