package baseline

import (
	"slices"
	"testing"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func checkSlots(t *testing.T, f *FreeSlots, want ...FreeSlot) {
	t.Helper()
	if got := f.Slots(); !slices.Equal(got, want) {
		t.Errorf("Slots() = %v, want %v", got, want)
	}
}

func TestFreeSlotsCoalesce(t *testing.T) {
	tests := []struct {
		name  string
		frees []FreeSlot
		want  []FreeSlot
	}{
		{
			name:  "bridge two spans",
			frees: []FreeSlot{{0, 2}, {8, 8}, {2, 2}, {4, 4}},
			want:  []FreeSlot{{0, 16}},
		},
		{
			name:  "extend left then right",
			frees: []FreeSlot{{4, 8}, {0, 2}, {2, 2}},
			want:  []FreeSlot{{0, 12}},
		},
		{
			name:  "disjoint",
			frees: []FreeSlot{{8, 4}, {0, 4}},
			want:  []FreeSlot{{0, 4}, {8, 4}},
		},
		{
			name:  "empty slot ignored",
			frees: []FreeSlot{{0, 0}},
			want:  []FreeSlot{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFreeSlots()
			for _, s := range tt.frees {
				f.Free(s)
			}
			checkSlots(t, f, tt.want...)
			if f.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", f.Len(), len(tt.want))
			}
		})
	}
}

func TestFreeSlotsOverlapPanics(t *testing.T) {
	expectPanic(t, "freeing an already free range", func() {
		f := NewFreeSlots()
		f.Free(FreeSlot{0, 8})
		f.Free(FreeSlot{4, 4})
	})
	expectPanic(t, "freeing into the next range", func() {
		f := NewFreeSlots()
		f.Free(FreeSlot{8, 8})
		f.Free(FreeSlot{4, 8})
	})
}

func TestFreeSlotsAlloc(t *testing.T) {
	f := NewFreeSlots()
	if _, ok := f.Alloc(2, 2); ok {
		t.Fatal("Alloc from an empty list succeeded")
	}

	f.Free(FreeSlot{0, 2})
	if start, ok := f.Alloc(2, 2); !ok || start != 0 {
		t.Errorf("Alloc(2, 2) = %d, %v, want 0, true", start, ok)
	}
	checkSlots(t, f)

	f.Free(FreeSlot{0, 8})
	f.Free(FreeSlot{12, 4})
	if start, ok := f.Alloc(4, 4); !ok || start != 12 {
		t.Errorf("Alloc(4, 4) = %d, %v, want 12, true", start, ok)
	}
	checkSlots(t, f, FreeSlot{0, 8})
}

func TestFreeSlotsBestFit(t *testing.T) {
	tests := []struct {
		name      string
		free      []FreeSlot
		size      uint32
		align     uint32
		wantStart uint32
		wantOK    bool
		wantLeft  []FreeSlot
	}{
		{
			name:      "smallest gap wins",
			free:      []FreeSlot{{0, 16}, {20, 6}},
			size:      4,
			align:     4,
			wantStart: 20,
			wantOK:    true,
			wantLeft:  []FreeSlot{{0, 16}, {24, 2}},
		},
		{
			name:      "first found on ties",
			free:      []FreeSlot{{0, 8}, {12, 8}},
			size:      4,
			align:     4,
			wantStart: 0,
			wantOK:    true,
			wantLeft:  []FreeSlot{{4, 4}, {12, 8}},
		},
		{
			name:      "value ending at the slot end fits",
			free:      []FreeSlot{{2, 10}},
			size:      8,
			align:     4,
			wantStart: 4,
			wantOK:    true,
			wantLeft:  []FreeSlot{{2, 2}},
		},
		{
			name:     "misaligned exact match is skipped",
			free:     []FreeSlot{{2, 4}},
			size:     4,
			align:    4,
			wantLeft: []FreeSlot{{2, 4}},
		},
		{
			name:     "alignment padding leaves no room",
			free:     []FreeSlot{{1, 8}},
			size:     8,
			align:    8,
			wantLeft: []FreeSlot{{1, 8}},
		},
		{
			name:      "aligned exact match is taken at once",
			free:      []FreeSlot{{0, 12}, {16, 8}},
			size:      8,
			align:     8,
			wantStart: 16,
			wantOK:    true,
			wantLeft:  []FreeSlot{{0, 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFreeSlots()
			for _, s := range tt.free {
				f.Free(s)
			}
			start, ok := f.Alloc(tt.size, tt.align)
			if ok != tt.wantOK || start != tt.wantStart {
				t.Errorf("Alloc(%d, %d) = %d, %v, want %d, %v", tt.size, tt.align, start, ok, tt.wantStart, tt.wantOK)
			}
			checkSlots(t, f, tt.wantLeft...)
		})
	}
}
