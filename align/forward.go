package align

import (
	"math"
	"sync"

	"github.com/exascience/strcall/mathx"
)

// logMatrix is a reusable row-major float64 matrix, grounded on
// elPrep's float64Matrix in filters/pairhmm.go.
type logMatrix struct {
	cols int
	data []float64
}

func (m *logMatrix) ensureSize(rows, cols int) {
	m.cols = cols
	total := rows * cols
	if total <= cap(m.data) {
		m.data = m.data[:total]
	} else {
		m.data = make([]float64, total)
	}
	for i := range m.data {
		m.data[i] = mathx.NegInf
	}
}

func (m *logMatrix) row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

type forwardMatrices struct {
	match, insertion, deletion logMatrix
}

var forwardMatricesPool = sync.Pool{New: func() interface{} { return new(forwardMatrices) }}

func getForwardMatrices() *forwardMatrices { return forwardMatricesPool.Get().(*forwardMatrices) }
func putForwardMatrices(p *forwardMatrices) { forwardMatricesPool.Put(p) }

// forwardLogLikelihood returns log P(readBases | hapBases), summed
// over every gapped alignment path, in natural log, using the same
// three-state (match/insertion/deletion) recursion as elPrep's
// filters/pairhmm.go computeReadLikelihoods, translated from a
// probability-domain recursion with an underflow-avoidance rescaling
// trick into a direct natural-log recursion via logsumexp (spec.md
// §9: "all likelihoods are kept in natural log throughout ...
// logsumexp must be implemented with the standard max-subtraction
// trick").
func forwardLogLikelihood(readBases string, quals []byte, hapBases []byte) float64 {
	readLen, hapLen := len(readBases), len(hapBases)
	if readLen == 0 || hapLen == 0 {
		return mathx.NegInf
	}

	p := getForwardMatrices()
	defer putForwardMatrices(p)
	p.match.ensureSize(readLen+1, hapLen+1)
	p.insertion.ensureSize(readLen+1, hapLen+1)
	p.deletion.ensureSize(readLen+1, hapLen+1)

	// Uniform entry into the deletion state at any haplotype offset:
	// the read may start aligning anywhere along the haplotype (local
	// alignment start), mirroring pDeletion0 in pairhmm.go.
	logUniform := -math.Log(float64(hapLen))
	deletion0 := p.deletion.row(0)
	for j := 0; j <= hapLen; j++ {
		deletion0[j] = logUniform
	}

	for i := 0; i < readLen; i++ {
		x := readBases[i]
		q := clampQual(quals[i])
		e := errorProb(q)
		logMatchPrior := math.Log(1 - e)
		logMismatchPrior := math.Log(e / 3)

		matchI, matchI1 := p.match.row(i), p.match.row(i+1)
		insI, insI1 := p.insertion.row(i), p.insertion.row(i+1)
		delI, delI1 := p.deletion.row(i), p.deletion.row(i+1)

		for j := 0; j < hapLen; j++ {
			y := hapBases[j]
			var prior float64
			if x == y || x == 'N' || y == 'N' {
				prior = logMatchPrior
			} else {
				prior = logMismatchPrior
			}
			matchI1[j+1] = prior + mathx.LogSumExpSlice([]float64{
				matchI[j] + logMatchToMatch,
				insI[j] + logIndelToMatch,
				delI[j] + logIndelToMatch,
			})
			insI1[j+1] = mathx.LogSumExpPair(matchI[j+1]+logMatchToIndel, insI[j+1]+logIndelToIndel)
			delI1[j+1] = mathx.LogSumExpPair(matchI1[j]+logMatchToIndel, delI1[j]+logIndelToIndel)
		}
	}

	matchEnd := p.match.row(readLen)
	insEnd := p.insertion.row(readLen)
	terms := make([]float64, 0, 2*hapLen)
	for j := 1; j <= hapLen; j++ {
		terms = append(terms, matchEnd[j], insEnd[j])
	}
	return mathx.LogSumExpSlice(terms)
}
