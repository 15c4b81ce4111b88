package bitset

import "testing"

func TestNewSizeRounding(t *testing.T) {
	cases := []struct {
		nBits     int
		wantBytes int
	}{
		{0, 0},
		{1, 1},
		{7, 1},
		{8, 1},
		{9, 2},
		{16, 2},
		{17, 3},
	}

	for _, tc := range cases {
		s := New(tc.nBits)
		if got := len(s); got != tc.wantBytes {
			t.Fatalf("New(%d) bytes = %d; want %d", tc.nBits, got, tc.wantBytes)
		}
	}
}

func TestSetHasAndBounds(t *testing.T) {
	s := New(10) // 2 bytes

	if s.Has(-1) || s.Has(100) {
		t.Fatalf("Has out-of-range should be false")
	}

	idxs := []int{0, 7, 8, 9}
	for _, i := range idxs {
		s.Set(i)
	}
	for _, i := range idxs {
		if !s.Has(i) {
			t.Fatalf("bit %d should be set", i)
		}
	}

	// Out-of-range Set must not panic or affect valid bits.
	s.Set(100)
	for _, i := range idxs {
		if !s.Has(i) {
			t.Fatalf("bit %d unexpectedly cleared by OOB Set", i)
		}
	}
}

func TestSetReportsChange(t *testing.T) {
	s := New(8)

	if !s.Set(3) {
		t.Fatal("first Set(3) should report a change")
	}
	if s.Set(3) {
		t.Fatal("second Set(3) should report no change")
	}
}

func TestCount(t *testing.T) {
	s := New(10)
	s.Set(0)
	s.Set(2)
	s.Set(3)
	s.Set(8)

	if got := s.Count(); got != 4 {
		t.Fatalf("Count() = %d; want 4", got)
	}
}
