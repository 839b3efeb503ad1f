package app

import "testing"

func TestHistoryRecordDeduplicates(t *testing.T) {
	h := NewHistory(0)
	for _, id := range []int{1, 2, 3, 2} {
		h.Record(id)
	}
	got := h.IDs()
	want := []int{1, 3, 2}
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", got, want)
		}
	}
}

func TestHistoryEvict(t *testing.T) {
	h := NewHistory(0)
	h.Record(1)
	h.Record(2)
	h.Evict(1)
	h.Evict(42)
	if h.Contains(1) {
		t.Fatal("expected id 1 evicted")
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", h.Len())
	}
}

func TestHistoryLimitEvictsOldest(t *testing.T) {
	h := NewHistory(2)
	h.Record(1)
	h.Record(2)
	h.Record(1)
	h.Record(3)
	got := h.IDs()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("IDs() = %v, want [1 3]", got)
	}
}
