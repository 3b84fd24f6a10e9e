package region

import "testing"

func TestLen(t *testing.T) {
	r := Region{Start: 100, Stop: 120}
	if got := r.Len(); got != 21 {
		t.Errorf("Len() = %d, want 21", got)
	}
}

func TestString(t *testing.T) {
	r := Region{Chrom: "chr1", Start: 1000, Stop: 1020}
	if got, want := r.String(), "chr1:1000-1020"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	r.Name = "D1S80"
	if got, want := r.String(), "chr1:1000-1020(D1S80)"; got != want {
		t.Errorf("named String() = %q, want %q", got, want)
	}
}
