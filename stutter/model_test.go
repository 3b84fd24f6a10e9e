package stutter

import (
	"math"
	"testing"

	"github.com/exascience/strcall/mathx"
)

func TestDefaultForPeriod(t *testing.T) {
	m := DefaultForPeriod(4)
	if m.Period != 4 {
		t.Errorf("Period = %d, want 4", m.Period)
	}
	if m.MaxInsertion != 8 || m.MaxDeletion != 8 {
		t.Errorf("MaxInsertion/MaxDeletion = %d/%d, want 8/8", m.MaxInsertion, m.MaxDeletion)
	}
}

func TestLogProbArtifactZeroDelta(t *testing.T) {
	m := DefaultForPeriod(4)
	got := m.LogProbArtifact(40, 0)
	want := math.Log(1 - m.InUp - m.InDown)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("LogProbArtifact(_, 0) = %v, want %v", got, want)
	}
}

func TestLogProbArtifactOutOfSupport(t *testing.T) {
	m := DefaultForPeriod(4)
	if got := m.LogProbArtifact(40, m.MaxInsertion+1); got != mathx.NegInf {
		t.Errorf("delta beyond MaxInsertion: got %v, want NegInf", got)
	}
	if got := m.LogProbArtifact(40, -(m.MaxDeletion + 1)); got != mathx.NegInf {
		t.Errorf("delta beyond MaxDeletion: got %v, want NegInf", got)
	}
}

func TestLogProbArtifactInFrameVsOutOfFrame(t *testing.T) {
	m := DefaultForPeriod(4)
	inFrame := m.LogProbArtifact(40, 4)
	outOfFrame := m.LogProbArtifact(40, 3)
	if inFrame == mathx.NegInf || outOfFrame == mathx.NegInf {
		t.Fatalf("expected both deltas within support, got in-frame=%v out-of-frame=%v", inFrame, outOfFrame)
	}
	if inFrame == outOfFrame {
		t.Error("in-frame and out-of-frame deltas should generally differ in log-probability")
	}
}

func TestLogProbArtifactDirectionZeroProbability(t *testing.T) {
	m := New(4, 8, 8, 0.3, 0, 0.08, 0.6, 0.01, 0.01)
	if got := m.LogProbArtifact(40, 4); got != mathx.NegInf {
		t.Errorf("InUp=0 should make a positive in-frame delta impossible, got %v", got)
	}
}

func TestSupport(t *testing.T) {
	m := New(4, 2, 3, 0.3, 0.08, 0.08, 0.6, 0.01, 0.01)
	support := m.Support()
	want := []int32{-3, -2, -1, 0, 1, 2}
	if len(support) != len(want) {
		t.Fatalf("Support() has %d entries, want %d", len(support), len(want))
	}
	for i, d := range want {
		if support[i] != d {
			t.Errorf("Support()[%d] = %d, want %d", i, support[i], d)
		}
	}
}

func TestParamsRoundTrip(t *testing.T) {
	m := DefaultForPeriod(2)
	p := m.Params()
	p[0] = 0.5
	m2 := m.WithParams(p)
	if m2.InFrameP != 0.5 {
		t.Errorf("WithParams did not update InFrameP, got %v", m2.InFrameP)
	}
	if m2.Period != m.Period || m2.MaxInsertion != m.MaxInsertion || m2.MaxDeletion != m.MaxDeletion {
		t.Error("WithParams should not disturb Period/MaxInsertion/MaxDeletion")
	}
}
