package domain

import "fmt"

type atKind uint8

const (
	atLatest atKind = iota
	atBlock
	atTime
)

// At selects the point a price is read at: the latest state, a block height or a unix time.
// The zero value means latest.
type At struct {
	kind  atKind
	block uint64
	time  int64
}

// Latest reads the current state.
func Latest() At { return At{} }

// AtBlock pins the read to a block height.
func AtBlock(height uint64) At { return At{kind: atBlock, block: height} }

// AtTime pins the read to a unix timestamp.
func AtTime(ts int64) At { return At{kind: atTime, time: ts} }

// IsLatest reports whether no point was pinned.
func (a At) IsLatest() bool { return a.kind == atLatest }

// Block returns the pinned height, if any.
func (a At) Block() (uint64, bool) { return a.block, a.kind == atBlock }

// Time returns the pinned timestamp, if any.
func (a At) Time() (int64, bool) { return a.time, a.kind == atTime }

func (a At) String() string {
	switch a.kind {
	case atBlock:
		return fmt.Sprintf("block:%d", a.block)
	case atTime:
		return fmt.Sprintf("time:%d", a.time)
	}
	return "latest"
}
