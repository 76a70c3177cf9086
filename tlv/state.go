// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

// stateEntry represents the decoding state of a constructed TLV.
type stateEntry struct {
	Header

	// Start is the offset of the first byte of the TLV value within the input.
	Start int

	// End is the offset just past the TLV value. End is [LengthIndefinite] if the
	// value uses the indefinite-length format and is terminated by an
	// end-of-contents marker.
	End int

	// Limit is the offset that no nested data value may exceed. It equals End for
	// definite-length data values and is inherited from the parent otherwise.
	Limit int
}

// state maintains the state of a [Decoder]. The state consists of a stack of
// TLVs that are currently being processed. At the bottom of the stack there is
// a virtual constructed TLV representing the root level of the input, ending at
// the end of the input.
type state struct {
	stack []stateEntry
	curr  stateEntry // top entry of the stack
}

// reset clears the state to a single root element ending at end. The
// allocated stack space is reused.
func (s *state) reset(end int) {
	if s.stack == nil {
		s.stack = make([]stateEntry, 0, 10)
	}
	s.stack = s.stack[:0]
	s.curr = stateEntry{
		Header: Header{Length: LengthIndefinite, Constructed: true},
		End:    end,
		Limit:  end,
	}
}

// root indicates whether s is currently at the root level.
func (s *state) root() bool {
	return len(s.stack) == 0
}

// depth returns the number of constructed TLVs currently open.
func (s *state) depth() int {
	return len(s.stack)
}

// push puts h onto the stack, indicating that the value of h starting at start
// is now being processed.
func (s *state) push(h Header, start int) {
	limit := s.curr.Limit
	s.stack = append(s.stack, s.curr)
	end := LengthIndefinite
	if h.Length != LengthIndefinite {
		end = start + h.Length
		limit = end
	}
	s.curr = stateEntry{Header: h, Start: start, End: end, Limit: limit}
}

// pop removes the topmost element from the stack. This indicates that
// processing of the topmost element is completed.
func (s *state) pop() {
	s.curr = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
}
