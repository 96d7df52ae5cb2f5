// Package blockrange splits an inclusive range of block numbers into fixed size, ascending chunks
package blockrange

import "fmt"

// DefaultChunkSize is the number of blocks fetched and written as one batch
const DefaultChunkSize = 1000

// MaxChunkSize is the largest chunk a Planner produces, a chunk is held in memory before it is written
const MaxChunkSize = 1 << 20

// Range is an inclusive range of block numbers, a Range with Start > End is empty
type Range struct {
	Start uint64
	End   uint64
}

// New builds a Range
func New(start, end uint64) Range {
	return Range{Start: start, End: end}
}

// Empty reports whether the range holds no block
func (r Range) Empty() bool {
	return r.Start > r.End
}

// Len returns the number of blocks in the range, saturating at max uint64 for the full range
func (r Range) Len() uint64 {
	if r.Empty() {
		return 0
	}
	n := r.End - r.Start
	if n == ^uint64(0) {
		return n
	}
	return n + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// Chunks returns a Planner that visits the range in chunks of size blocks, size 0 means DefaultChunkSize.
// Sizes above MaxChunkSize are capped.
func (r Range) Chunks(size uint64) *Planner {
	switch {
	case size == 0:
		size = DefaultChunkSize
	case size > MaxChunkSize:
		size = MaxChunkSize
	}
	p := &Planner{rng: r, size: size}
	p.Reset()
	return p
}

// Chunk is an inclusive, non empty sub range of block numbers
type Chunk struct {
	Start uint64
	End   uint64
}

// Len returns the number of blocks in the chunk
func (c Chunk) Len() int {
	return int(c.End-c.Start) + 1
}

// Numbers lists the block numbers of the chunk in ascending order
func (c Chunk) Numbers() []uint64 {
	numbers := make([]uint64, 0, c.Len())
	for n := c.Start; ; n++ {
		numbers = append(numbers, n)
		if n == c.End {
			break
		}
	}
	return numbers
}

func (c Chunk) String() string {
	return fmt.Sprintf("[%d, %d]", c.Start, c.End)
}

// Planner lazily produces the chunks of a Range in ascending order. It is not safe for concurrent use.
type Planner struct {
	rng  Range
	size uint64

	next uint64
	done bool
}

// Next returns the next chunk, ok is false once the range is exhausted
func (p *Planner) Next() (chunk Chunk, ok bool) {
	if p.done {
		return Chunk{}, false
	}
	chunk.Start = p.next
	chunk.End = p.rng.End
	// the subtraction can't overflow since next <= End while not done
	if p.rng.End-p.next >= p.size {
		chunk.End = p.next + p.size - 1
	}
	if chunk.End == p.rng.End {
		p.done = true
	} else {
		p.next = chunk.End + 1
	}
	return chunk, true
}

// Reset rewinds the planner to the first chunk
func (p *Planner) Reset() {
	p.next = p.rng.Start
	p.done = p.rng.Empty()
}

// All drains a fresh pass of the planner into a slice
func (p *Planner) All() []Chunk {
	p.Reset()
	var chunks []Chunk
	for c, ok := p.Next(); ok; c, ok = p.Next() {
		chunks = append(chunks, c)
	}
	p.Reset()
	return chunks
}
