package catalog

import (
	"strings"
	"unicode"
)

// SourceType classifies how a recording was captured.
type SourceType string

const (
	SourceSoundboard SourceType = "SBD"
	SourceMatrix     SourceType = "MATRIX"
	SourceAudience   SourceType = "AUD"
	SourceFM         SourceType = "FM"
	SourceRemaster   SourceType = "REMASTER"
	SourceUnknown    SourceType = "UNKNOWN"
)

// Rank orders source types by expected audio quality; higher is better.
func (s SourceType) Rank() int {
	switch s {
	case SourceSoundboard:
		return 5
	case SourceRemaster:
		return 4
	case SourceMatrix:
		return 3
	case SourceFM:
		return 2
	case SourceAudience:
		return 1
	}
	return 0
}

// ParseSourceType maps a stored value back to a SourceType.
func ParseSourceType(s string) SourceType {
	switch st := SourceType(strings.ToUpper(s)); st {
	case SourceSoundboard, SourceMatrix, SourceAudience, SourceFM, SourceRemaster:
		return st
	}
	return SourceUnknown
}

// ExtractSourceType inspects identifiers, titles and source notes. Markers
// are matched as whole tokens so venue words like "Auditorium" do not read
// as audience recordings. Priority: SBD, MATRIX, AUD, FM, REMASTER.
func ExtractSourceType(texts ...string) SourceType {
	tokens := make(map[string]bool)
	joined := strings.ToUpper(strings.Join(texts, " "))
	for _, tok := range strings.FieldsFunc(joined, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}

	switch {
	case tokens["SBD"] || tokens["SOUNDBOARD"]:
		return SourceSoundboard
	case tokens["MATRIX"] || tokens["MTX"]:
		return SourceMatrix
	case tokens["AUD"] || tokens["AUDIENCE"]:
		return SourceAudience
	case tokens["FM"] || tokens["PREFM"] || tokens["BROADCAST"]:
		return SourceFM
	case strings.Contains(joined, "REMASTER"):
		return SourceRemaster
	}
	return SourceUnknown
}
