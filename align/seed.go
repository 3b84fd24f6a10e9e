package align

import "strings"

// seedAnchorLen is the length of the flank window tried as a seed
// anchor, long enough that a random match against a non-repetitive
// flank is very unlikely to recur (spec.md §4.4 step 1: "a high-
// entropy flank region is uniquely placed").
const seedAnchorLen = 15

// findSeed locates the position in haplotype bases hap where a window
// of readBases anchors unambiguously, returning the 0-based offset
// into hap that the start of readBases maps to, or -1 if no unique
// anchor exists (spec.md §4.4 step 1: "if no seed exists,
// seed_positions[r] = -1").
//
// It tries the read's leading window first (anchored against the left
// flank), then its trailing window (anchored against the right
// flank), accepting a candidate only when the window occurs exactly
// once in hap.
func findSeed(readBases string, hap []byte) int32 {
	hapStr := string(hap)
	if len(readBases) >= seedAnchorLen {
		window := readBases[:seedAnchorLen]
		if pos, ok := uniqueIndex(hapStr, window); ok {
			return int32(pos)
		}
		window = readBases[len(readBases)-seedAnchorLen:]
		if pos, ok := uniqueIndex(hapStr, window); ok {
			return int32(pos) - int32(len(readBases)-seedAnchorLen)
		}
	}
	// short-read fallback: try the whole read as its own anchor.
	if pos, ok := uniqueIndex(hapStr, readBases); ok {
		return int32(pos)
	}
	return -1
}

// uniqueIndex returns the index of window's sole occurrence in s, and
// false if window occurs zero or more-than-one times.
func uniqueIndex(s, window string) (int, bool) {
	if window == "" {
		return 0, false
	}
	first := strings.Index(s, window)
	if first < 0 {
		return 0, false
	}
	if strings.Index(s[first+1:], window) >= 0 {
		return 0, false
	}
	return first, true
}
