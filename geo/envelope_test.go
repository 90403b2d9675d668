package geo

import "testing"

func TestEnvelope_IsNull(t *testing.T) {
	tests := []struct {
		name string
		e    Envelope
		null bool
	}{
		{"zero value is not null", Envelope{}, false},
		{"explicit null", NullEnvelope(), true},
		{"normal box", NewEnvelope(0, 1, 0, 1), false},
		{"xmax < xmin", NewEnvelope(5, 4, 0, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.IsNull(); got != tt.null {
				t.Errorf("IsNull() = %v, want %v", got, tt.null)
			}
		})
	}
}

func TestEnvelope_Area(t *testing.T) {
	e := NewEnvelope(0, 2, 0, 3)
	if got := e.Area(); got != 6 {
		t.Errorf("Area() = %v, want 6", got)
	}
	if got := NullEnvelope().Area(); got != 0 {
		t.Errorf("null Area() = %v, want 0", got)
	}
}

func TestEnvelope_CoversPoint(t *testing.T) {
	e := NewEnvelope(0, 10, 0, 10)
	if !e.CoversPoint(5, 5) {
		t.Error("expected (5,5) to be covered")
	}
	if !e.CoversPoint(0, 0) {
		t.Error("expected boundary point to be covered")
	}
	if e.CoversPoint(11, 5) {
		t.Error("expected (11,5) not to be covered")
	}
	if NullEnvelope().CoversPoint(0, 0) {
		t.Error("null envelope should cover nothing")
	}
}

func TestEnvelope_Intersects(t *testing.T) {
	a := NewEnvelope(0, 10, 0, 10)
	b := NewEnvelope(5, 15, 5, 15)
	c := NewEnvelope(20, 30, 20, 30)
	if !a.Intersects(b) {
		t.Error("expected a, b to intersect")
	}
	if a.Intersects(c) {
		t.Error("expected a, c not to intersect")
	}
}

func TestEnvelope_Expand(t *testing.T) {
	a := NewEnvelope(0, 1, 0, 1)
	b := NewEnvelope(2, 3, 2, 3)
	got := a.Expand(b)
	want := NewEnvelope(0, 3, 0, 3)
	if got != want {
		t.Errorf("Expand() = %v, want %v", got, want)
	}

	// Expanding by a null envelope is a no-op.
	if got := a.Expand(NullEnvelope()); got != a {
		t.Errorf("Expand(null) = %v, want %v", got, a)
	}
	// Expanding a null envelope by a real one adopts the real one.
	if got := NullEnvelope().Expand(b); got != b {
		t.Errorf("null.Expand(b) = %v, want %v", got, b)
	}
}

func TestEnvelope_Enlargement(t *testing.T) {
	a := NewEnvelope(0, 10, 0, 10) // area 100
	b := NewEnvelope(0, 20, 0, 10) // area 200, covers a entirely when merged
	if got := a.Enlargement(b); got != 100 {
		t.Errorf("Enlargement() = %v, want 100", got)
	}
	inside := NewEnvelope(1, 2, 1, 2)
	if got := a.Enlargement(inside); got != 0 {
		t.Errorf("Enlargement(inside) = %v, want 0", got)
	}
}

func TestEnvelope_DeadSpace(t *testing.T) {
	a := NewEnvelope(0, 1, 0, 1)
	b := NewEnvelope(10, 11, 10, 11)
	// Union area is huge relative to the sum of the two unit squares.
	if ds := a.DeadSpace(b); ds <= 2 {
		t.Errorf("DeadSpace() = %v, want > 2 for well-separated boxes", ds)
	}
}

func TestEnvelope_FromSlice(t *testing.T) {
	e, err := FromSlice([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if e != NewEnvelope(1, 2, 3, 4) {
		t.Errorf("FromSlice() = %v", e)
	}

	if _, err := FromSlice([]float64{1, 2, 3}); err == nil {
		t.Error("expected error for 3-element slice")
	}
}

func TestEnvelope_Covers(t *testing.T) {
	outer := NewEnvelope(0, 10, 0, 10)
	inner := NewEnvelope(2, 8, 2, 8)
	if !outer.Covers(inner) {
		t.Error("expected outer to cover inner")
	}
	if inner.Covers(outer) {
		t.Error("expected inner not to cover outer")
	}
}
