package align

import (
	"math"

	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/trace"
)

// backState tags which of the three DP states a cell's best-scoring
// predecessor came from, or backStart for the base case.
type backState int8

const (
	backStart backState = iota
	backMatch
	backInsertion
	backDeletion
)

// byteGrid is a reusable row-major grid of backState, mirroring
// logMatrix's shape but for the traceback's backpointer matrices.
type byteGrid struct {
	cols int
	data []backState
}

func (g *byteGrid) ensureSize(rows, cols int) {
	g.cols = cols
	total := rows * cols
	if total <= cap(g.data) {
		g.data = g.data[:total]
	} else {
		g.data = make([]backState, total)
	}
}

func (g *byteGrid) row(i int) []backState { return g.data[i*g.cols : (i+1)*g.cols] }

// opKind is one step of a traced alignment path, in read order.
type opKind byte

const (
	opMatch     opKind = 'M'
	opInsertion opKind = 'I'
	opDeletion  opKind = 'D'
)

type tracedOp struct {
	kind   opKind
	hapCol int // 0-based column into hapBases; -1 for insertions
}

// viterbiAlign runs the max-path variant of forwardLogLikelihood's
// three-state recursion (match/insertion/deletion), recording a
// backpointer at every cell so the single best-scoring alignment path
// can be recovered, rather than summing over every path the way
// forwardLogLikelihood does. Grounded on the same elPrep
// filters/pairhmm.go recursion as forward.go, specialized here to
// Viterbi (max + argmax) because the traceback (spec.md §4.4 step 4)
// needs one concrete path, not a marginal likelihood.
func viterbiAlign(readBases string, quals []byte, hapBases []byte) (float64, []tracedOp) {
	readLen, hapLen := len(readBases), len(hapBases)
	if readLen == 0 || hapLen == 0 {
		return mathx.NegInf, nil
	}

	var match, insertion, deletion logMatrix
	match.ensureSize(readLen+1, hapLen+1)
	insertion.ensureSize(readLen+1, hapLen+1)
	deletion.ensureSize(readLen+1, hapLen+1)
	var backMatchG, backInsG, backDelG byteGrid
	backMatchG.ensureSize(readLen+1, hapLen+1)
	backInsG.ensureSize(readLen+1, hapLen+1)
	backDelG.ensureSize(readLen+1, hapLen+1)

	logUniform := -math.Log(float64(hapLen))
	deletion0 := deletion.row(0)
	delBack0 := backDelG.row(0)
	for j := 0; j <= hapLen; j++ {
		deletion0[j] = logUniform
		delBack0[j] = backStart
	}

	for i := 0; i < readLen; i++ {
		x := readBases[i]
		q := clampQual(quals[i])
		e := errorProb(q)
		logMatchPrior := math.Log(1 - e)
		logMismatchPrior := math.Log(e / 3)

		matchI, matchI1 := match.row(i), match.row(i+1)
		insI, insI1 := insertion.row(i), insertion.row(i+1)
		delI, delI1 := deletion.row(i), deletion.row(i+1)
		bm1 := backMatchG.row(i + 1)
		bi1 := backInsG.row(i + 1)
		bd1 := backDelG.row(i + 1)

		for j := 0; j < hapLen; j++ {
			y := hapBases[j]
			var prior float64
			if x == y || x == 'N' || y == 'N' {
				prior = logMatchPrior
			} else {
				prior = logMismatchPrior
			}

			best, bestState := matchI[j]+logMatchToMatch, backMatch
			if v := insI[j] + logIndelToMatch; v > best {
				best, bestState = v, backInsertion
			}
			if v := delI[j] + logIndelToMatch; v > best {
				best, bestState = v, backDeletion
			}
			matchI1[j+1] = prior + best
			bm1[j+1] = bestState

			insBest, insState := matchI[j+1]+logMatchToIndel, backMatch
			if v := insI[j+1] + logIndelToIndel; v > insBest {
				insBest, insState = v, backInsertion
			}
			insI1[j+1] = insBest
			bi1[j+1] = insState

			delBest, delState := matchI1[j]+logMatchToIndel, backMatch
			if v := delI1[j] + logIndelToIndel; v > delBest {
				delBest, delState = v, backDeletion
			}
			delI1[j+1] = delBest
			bd1[j+1] = delState
		}
	}

	matchEnd := match.row(readLen)
	insEnd := insertion.row(readLen)
	bestScore := mathx.NegInf
	bestJ, bestState := 0, backMatch
	for j := 1; j <= hapLen; j++ {
		if matchEnd[j] > bestScore {
			bestScore, bestJ, bestState = matchEnd[j], j, backMatch
		}
		if insEnd[j] > bestScore {
			bestScore, bestJ, bestState = insEnd[j], j, backInsertion
		}
	}
	if bestScore <= mathx.NegInf {
		return mathx.NegInf, nil
	}

	i, j, state := readLen, bestJ, bestState
	var rev []tracedOp
	for i > 0 {
		switch state {
		case backMatch:
			rev = append(rev, tracedOp{kind: opMatch, hapCol: j - 1})
			state = backMatchG.row(i)[j]
			i, j = i-1, j-1
		case backInsertion:
			rev = append(rev, tracedOp{kind: opInsertion, hapCol: -1})
			state = backInsG.row(i)[j]
			i, j = i-1, j
		case backDeletion:
			rev = append(rev, tracedOp{kind: opDeletion, hapCol: j - 1})
			state = backDelG.row(i)[j]
			j = j - 1
		default:
			i = 0
		}
	}
	ops := make([]tracedOp, len(rev))
	for k, op := range rev {
		ops[len(rev)-1-k] = op
	}
	return bestScore, ops
}

// TraceAlignment computes the Trace for the best-supported stutter
// offset of candidate allele k (spec.md §4.4 step 4): the stutter
// size applied, the repeat-block sequence the traceback actually
// implies, and any flank insertion/deletion descriptors.
func TraceAlignment(bases string, quals []byte, hap haplotype.Haplotype, k int) trace.Trace {
	delta := bestDelta(bases, quals, hap, k)
	allele := hap.Repeat.Alternates[k]
	stretched := stretchRepeat(allele, delta, hap.Repeat.Stutter.Period)

	left := hap.Left.Alternates[0]
	right := hap.Right.Alternates[0]
	hapBases := make([]byte, 0, len(left)+len(stretched)+len(right))
	hapBases = append(hapBases, left...)
	hapBases = append(hapBases, stretched...)
	hapBases = append(hapBases, right...)

	score, ops := viterbiAlign(bases, quals, hapBases)

	leftLen, repeatLen := len(left), len(stretched)
	spans := tracedAlignmentSpansBlock(ops, leftLen, repeatLen)
	var flankIndels []trace.FlankIndel
	var cur *trace.FlankIndel
	flush := func() {
		if cur != nil {
			flankIndels = append(flankIndels, *cur)
			cur = nil
		}
	}
	extend := func(left bool, pos int) {
		if cur != nil && cur.Left == left && int(cur.Pos)+int(cur.Length) == pos {
			cur.Length++
			return
		}
		flush()
		cur = &trace.FlankIndel{Left: left, Pos: int32(pos), Length: 1, Insertion: false}
	}
	for _, op := range ops {
		switch {
		case op.kind == opMatch:
			flush()
		case op.kind == opDeletion && op.hapCol < leftLen:
			extend(true, op.hapCol)
		case op.kind == opDeletion && op.hapCol >= leftLen+repeatLen:
			extend(false, op.hapCol)
		case op.kind == opDeletion:
			flush() // deletion within the repeat block: captured by stutter size instead
		case op.kind == opInsertion:
			flush() // insertion position within a flank is ambiguous at the read-gap point; dropped rather than guessed
		}
	}
	flush()

	return trace.Trace{
		StutterSize:   delta,
		RepeatSeq:     stretched,
		FlankIndels:   flankIndels,
		LogLikelihood: score,
		Spans:         spans,
	}
}

// tracedAlignmentSpansBlock reports whether the traced path covers hap
// columns on both sides of the repeat block [leftLen, leftLen+repeatLen),
// the same "starts before the block, ends after it" spanning test
// HipSTR's get_stutter_candidate_alleles applies to a traced_aln before
// counting it toward the stutter-candidate denominator. Insertions don't
// consume a hap column, so only match/deletion ops bound the range.
func tracedAlignmentSpansBlock(ops []tracedOp, leftLen, repeatLen int) bool {
	first, last := -1, -1
	for _, op := range ops {
		if op.kind == opInsertion {
			continue
		}
		if first < 0 {
			first = op.hapCol
		}
		last = op.hapCol
	}
	if first < 0 {
		return false
	}
	return first < leftLen && last >= leftLen+repeatLen
}
