package read

import "testing"

func TestParseCigar(t *testing.T) {
	ops, err := ParseCigar("76M2D20M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []CigarOp{{76, 'M'}, {2, 'D'}, {20, 'M'}}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops, want %d", len(ops), len(want))
	}
	for i, op := range ops {
		if op != want[i] {
			t.Errorf("op %d = %+v, want %+v", i, op, want[i])
		}
	}

	if ops, err := ParseCigar(""); err != nil || ops != nil {
		t.Errorf("empty cigar should parse to nil, nil; got %v, %v", ops, err)
	}
	if ops, err := ParseCigar("*"); err != nil || ops != nil {
		t.Errorf("* cigar should parse to nil, nil; got %v, %v", ops, err)
	}
	if _, err := ParseCigar("M"); err == nil {
		t.Error("cigar with no leading length should error")
	}
	if _, err := ParseCigar("10"); err == nil {
		t.Error("cigar with trailing length and no operation should error")
	}
}

func TestReferenceSpan(t *testing.T) {
	ops, _ := ParseCigar("10M5I5D10M5S")
	if got := ReferenceSpan(ops); got != 25 {
		t.Errorf("ReferenceSpan = %d, want 25 (10M+5D+10M)", got)
	}
}

func TestAverageQualities(t *testing.T) {
	if got := AverageQualities(nil); got != nil {
		t.Errorf("AverageQualities(nil) = %v, want nil", got)
	}
	got := AverageQualities([][]byte{{10, 20}, {20, 40}})
	want := []byte{15, 30}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("AverageQualities = %v, want %v", got, want)
	}
}

func TestParseBpDiff(t *testing.T) {
	// A 2bp deletion at the start of the repeat window [100,120].
	ops, _ := ParseCigar("20M2D70M")
	got := ParseBpDiff(ops, 80, 100, 120)
	if got != -2 {
		t.Errorf("deletion within window: got %d, want -2", got)
	}

	// An insertion at the start of the window.
	ops, _ = ParseCigar("20M3I100M")
	got = ParseBpDiff(ops, 80, 100, 120)
	if got != 3 {
		t.Errorf("insertion within window: got %d, want 3", got)
	}

	// A read that never overlaps the window returns Missing.
	ops, _ = ParseCigar("50M")
	got = ParseBpDiff(ops, 1, 100, 120)
	if got != Missing {
		t.Errorf("non-overlapping read: got %d, want Missing", got)
	}
}

func TestNewRecordDefaults(t *testing.T) {
	rec := NewRecord("ACGT", []byte{30, 30, 30, 30}, "4M", 10, "sample1", -0.1, -2.3, true)
	if rec.BpDiff != Missing {
		t.Errorf("NewRecord should default BpDiff to Missing, got %d", rec.BpDiff)
	}
	if rec.SeedPosition != -1 {
		t.Errorf("NewRecord should default SeedPosition to -1, got %d", rec.SeedPosition)
	}
}

func TestUniformPhasePriors(t *testing.T) {
	p1, p2 := UniformPhasePriors()
	if p1 != p2 {
		t.Error("uniform phase priors should be equal")
	}
}
