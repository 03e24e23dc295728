// Package analysis turns loosely structured model output into AnalysisResults.
// All functions are pure and safe for concurrent use.
package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/videolens/pkg/models"
)

// ErrUnparsableResponse is returned when no extraction strategy yields a
// payload of a recognised shape.
var ErrUnparsableResponse = errors.New("unparsable model response")

// maxEmbeddedCandidates bounds the brace scan over free-form prose.
const maxEmbeddedCandidates = 64

var (
	reFence        = regexp.MustCompile("```[A-Za-z]*\\s*([\\s\\S]*?)```")
	reObservations = regexp.MustCompile(`"observations"\s*:\s*\[`)
)

type payloadKind int

const (
	kindDocument     payloadKind = iota // an object, or a list whose first element is the object
	kindObservations                    // a bare legacy observations array
)

// extractor is one way of locating JSON inside model output. Extractors run in
// a fixed priority order; the first candidate that decodes wins. A fallback
// extractor's first valid object is used with all defaults when no candidate
// matches a known shape.
type extractor struct {
	name       string
	kind       payloadKind
	fallback   bool
	candidates func(raw string) []string
}

var extractors = []extractor{
	{name: "direct", kind: kindDocument, fallback: true, candidates: directCandidates},
	{name: "fenced", kind: kindDocument, fallback: true, candidates: fencedCandidates},
	{name: "embedded", kind: kindDocument, candidates: embeddedCandidates},
	{name: "observations", kind: kindObservations, candidates: observationsCandidates},
}

// Normalize parses raw model output into a fully populated AnalysisResult.
// Missing fields take defaults ("Unknown", 0, ""); missing lists are empty.
func Normalize(raw string) (models.AnalysisResult, error) {
	parsed := false
	for _, ex := range extractors {
		for _, c := range ex.candidates(raw) {
			if !json.Valid([]byte(c)) {
				continue
			}
			if ex.fallback && !parsed {
				_, parsed = firstObject(json.RawMessage(c))
			}
			var (
				res models.AnalysisResult
				ok  bool
			)
			switch ex.kind {
			case kindObservations:
				res, ok = decodeObservationList(json.RawMessage(c))
			default:
				res, ok = decodeDocument(json.RawMessage(c))
			}
			if ok {
				return res, nil
			}
		}
	}
	if parsed {
		return baseResult(), nil
	}
	return models.AnalysisResult{}, ErrUnparsableResponse
}

func directCandidates(raw string) []string {
	s := trimJSONSpace(raw)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil
	}
	return []string{s}
}

func fencedCandidates(raw string) []string {
	var out []string
	for _, m := range reFence.FindAllStringSubmatch(raw, -1) {
		body := trimJSONSpace(m[1])
		if body != "" && (body[0] == '{' || body[0] == '[') {
			out = append(out, body)
		}
	}
	return out
}

func embeddedCandidates(raw string) []string {
	var out []string
	for i := 0; i < len(raw) && len(out) < maxEmbeddedCandidates; i++ {
		if raw[i] != '{' {
			continue
		}
		if end, ok := matchClosing(raw, i); ok {
			out = append(out, raw[i:end+1])
		}
	}
	return out
}

func observationsCandidates(raw string) []string {
	var out []string
	for _, loc := range reObservations.FindAllStringIndex(raw, -1) {
		open := loc[1] - 1
		if end, ok := matchClosing(raw, open); ok {
			out = append(out, raw[open:end+1])
		}
	}
	return out
}

// matchClosing returns the index of the bracket closing the one at open,
// skipping brackets inside JSON strings.
func matchClosing(s string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// trimJSONSpace strips whitespace plus BOM and zero-width characters models
// sometimes emit around a payload.
func trimJSONSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '\uFEFF', '\u200B', '\u200C', '\u200D', '\u2060':
			return true
		}
		return false
	})
}
