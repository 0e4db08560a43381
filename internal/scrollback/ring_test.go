package scrollback

import (
	"bytes"
	"fmt"
	"testing"
)

func TestRingEmpty(t *testing.T) {
	r := New(100)
	if !r.IsEmpty() {
		t.Error("expected empty ring")
	}
	if r.Len() != 0 {
		t.Errorf("expected len 0, got %d", r.Len())
	}
	if got := r.GetContents(); got != nil {
		t.Errorf("expected nil contents, got %q", got)
	}
}

func TestRingAppendUnderCapacity(t *testing.T) {
	r := New(100)
	r.Append([]byte("hello"))
	if r.IsEmpty() {
		t.Error("expected non-empty after append")
	}
	if got := r.GetContents(); !bytes.Equal(got, []byte("hello")) {
		t.Errorf("got %q", got)
	}
}

func TestRingExactCapacity(t *testing.T) {
	r := New(8)
	r.Append([]byte("12345678"))
	if got := r.GetContents(); !bytes.Equal(got, []byte("12345678")) {
		t.Fatalf("got %q", got)
	}
	r.Append([]byte("ab"))
	if got := r.GetContents(); !bytes.Equal(got, []byte("345678ab")) {
		t.Errorf("got %q", got)
	}
}

func TestRingOverCapacitySingleWrite(t *testing.T) {
	r := New(4)
	r.Append([]byte("abcdefgh"))
	if got := r.GetContents(); !bytes.Equal(got, []byte("efgh")) {
		t.Errorf("got %q", got)
	}
}

func TestRingAppendEmpty(t *testing.T) {
	r := New(8)
	r.Append(nil)
	if !r.IsEmpty() {
		t.Error("appending nothing should leave the ring empty")
	}
	r.Append([]byte("abc"))
	r.Append(nil)
	if got := r.GetContents(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("got %q", got)
	}
}

func TestRingManySmallAppendsCrossingWrap(t *testing.T) {
	r := New(5)
	for i := 0; i < 20; i++ {
		r.Append([]byte(fmt.Sprintf("%d", i%10)))
	}
	if r.Len() != 5 {
		t.Fatalf("expected len 5, got %d", r.Len())
	}
	got := r.GetContents()
	if len(got) != 5 {
		t.Fatalf("expected 5 bytes, got %d", len(got))
	}
	// last 5 digits written, in order, are from i=15..19 -> "56789"
	if !bytes.Equal(got, []byte("56789")) {
		t.Errorf("got %q", got)
	}
}

func TestRingGetContentsAfterWrapIsExactlyCapacity(t *testing.T) {
	r := New(16)
	r.Append(bytes.Repeat([]byte{'x'}, 50))
	if got := r.GetContents(); len(got) != 16 {
		t.Errorf("expected 16 bytes, got %d", len(got))
	}
}

func TestRingLenNeverExceedsCapacity(t *testing.T) {
	r := New(10)
	for i := 0; i < 5; i++ {
		r.Append(bytes.Repeat([]byte{'y'}, 7))
	}
	if r.Len() != 10 {
		t.Errorf("expected len capped at 10, got %d", r.Len())
	}
}

func TestRingNewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero capacity")
		}
	}()
	New(0)
}
