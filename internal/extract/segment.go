package extract

import (
	"regexp"
	"strings"
)

// Boundary-detecting patterns, applied in order, coarse to fine. Go's RE2
// has no lookahead, so each match START is used as a zero-width split point
// rather than consuming the marker.
var segmentPatterns = []*regexp.Regexp{
	// "XX小学的施教区 / XX中学施教区 / XX学校："
	regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+(?:小学|中学|学校|九年制学校)(?:的施教|施教区|：|:)`),
	// "1、XX小学" style numbered list items
	regexp.MustCompile(`\d+[、.]\s*[\x{4e00}-\x{9fa5}]+(?:小学|中学|学校)`),
}

// Segmenter splits one long text into bounded segments, each independently
// sent through direct extraction.
type Segmenter struct {
	MaxSegmentChars int // rune count ceiling per segment
}

func NewSegmenter(maxChars int) *Segmenter {
	if maxChars <= 0 {
		maxChars = 6000
	}
	return &Segmenter{MaxSegmentChars: maxChars}
}

// Split produces an ordered sequence of non-empty segments whose
// concatenation reconstructs the input modulo whitespace trimming. Segments
// still longer than MaxSegmentChars are sliced at fixed rune boundaries; a
// mid-sentence cut there is an accepted precision loss.
func (s *Segmenter) Split(text string) []string {
	segments := []string{text}
	for _, pat := range segmentPatterns {
		var next []string
		for _, seg := range segments {
			next = append(next, splitBefore(seg, pat)...)
		}
		segments = next
	}

	var final []string
	for _, seg := range segments {
		runes := []rune(seg)
		if len(runes) <= s.MaxSegmentChars {
			final = append(final, seg)
			continue
		}
		for i := 0; i < len(runes); i += s.MaxSegmentChars {
			end := i + s.MaxSegmentChars
			if end > len(runes) {
				end = len(runes)
			}
			final = append(final, string(runes[i:end]))
		}
	}
	return final
}

// splitBefore cuts text at the start offset of every pattern match,
// discarding empty or whitespace-only pieces.
func splitBefore(text string, pat *regexp.Regexp) []string {
	locs := pat.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var parts []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parts = append(parts, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	parts = append(parts, text[prev:])

	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
