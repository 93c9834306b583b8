package vm

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
)

// Stack is a LIFO byte-string stack, the same representation txscript's own
// internal stack type uses, generalized to the main/alt pair this module's
// engine operates on.
type Stack struct {
	items [][]byte
}

func (s *Stack) Depth() int { return len(s.items) }

func (s *Stack) Push(item []byte) {
	s.items = append(s.items, item)
}

func (s *Stack) Pop() ([]byte, error) {
	if len(s.items) == 0 {
		return nil, bvmerr.New("stack.Pop", bvmerr.VmHalt, "pop from empty stack", nil)
	}
	item := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return item, nil
}

func (s *Stack) PeekAt(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(s.items) {
		return nil, bvmerr.New("stack.PeekAt", bvmerr.VmHalt, "index out of range", nil)
	}
	return s.items[len(s.items)-1-idx], nil
}

// Roll moves the item idx positions from the top to the top of the stack.
func (s *Stack) Roll(idx int) error {
	item, err := s.PeekAt(idx)
	if err != nil {
		return err
	}
	pos := len(s.items) - 1 - idx
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.items = append(s.items, item)
	return nil
}

// Pick copies the item idx positions from the top onto the top.
func (s *Stack) Pick(idx int) error {
	item, err := s.PeekAt(idx)
	if err != nil {
		return err
	}
	s.Push(append([]byte(nil), item...))
	return nil
}

func (s *Stack) Items() [][]byte {
	out := make([][]byte, len(s.items))
	for i, it := range s.items {
		out[i] = append([]byte(nil), it...)
	}
	return out
}
