package pool

import (
	"testing"

	"github.com/exascience/strcall/read"
)

func TestAddAlignmentCoalescesIdenticalSequences(t *testing.T) {
	p := New()
	r1 := &read.Record{Bases: "acgt", Quals: []byte{10, 10, 10, 10}}
	r2 := &read.Record{Bases: "ACGT", Quals: []byte{20, 20, 20, 20}}
	r3 := &read.Record{Bases: "TTTT", Quals: []byte{30, 30, 30, 30}}

	id1 := p.AddAlignment(r1)
	id2 := p.AddAlignment(r2)
	id3 := p.AddAlignment(r3)

	if id1 != id2 {
		t.Errorf("reads differing only in case should share a pool id: got %d and %d", id1, id2)
	}
	if id3 == id1 {
		t.Error("a distinct sequence should get its own pool id")
	}
	if p.NumPools() != 2 {
		t.Errorf("NumPools = %d, want 2", p.NumPools())
	}
	if r1.PoolIndex != id1 || r2.PoolIndex != id2 {
		t.Error("AddAlignment should stamp PoolIndex on the record")
	}
	if p.Size(id1) != 2 {
		t.Errorf("Size(id1) = %d, want 2", p.Size(id1))
	}
	if p.RepresentativeBases(id1) != "ACGT" {
		t.Errorf("RepresentativeBases = %q, want %q", p.RepresentativeBases(id1), "ACGT")
	}
}

func TestFinalizeAveragesQualities(t *testing.T) {
	p := New()
	p.AddAlignment(&read.Record{Bases: "ACGT", Quals: []byte{10, 20}})
	p.AddAlignment(&read.Record{Bases: "ACGT", Quals: []byte{20, 40}})
	p.Finalize()

	got := p.RepresentativeQuals(0)
	want := []byte{15, 30}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("RepresentativeQuals = %v, want %v", got, want)
	}
}
