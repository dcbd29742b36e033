// Package citations finds references to Kazakhstan legal codes in answer
// text, numbers them, inserts inline [n] markers and builds a source list
// with adilet.zan.kz lookup links.
package citations

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const adiletSearchBase = "https://adilet.zan.kz/rus/search"

// Pattern matches one legal-code family: the code name followed by an
// article marker and number, e.g. "Гражданский кодекс РК, ст. 610".
type Pattern struct {
	Code string
	Expr *regexp.Regexp
}

func codePattern(code string) Pattern {
	return Pattern{
		Code: code,
		Expr: regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(code) + `[^,]*,\s*ст\.?\s*\d+)`),
	}
}

// DefaultPatterns covers the legal codes the assistant is expected to cite.
// New codes are added here, not in the scanning logic.
var DefaultPatterns = []Pattern{
	codePattern("Гражданский кодекс РК"),
	codePattern("Трудовой кодекс РК"),
	codePattern("Налоговый кодекс РК"),
	codePattern("КоАП РК"),
}

// Source is one entry of an annotated answer's source list.
type Source struct {
	ID             int     `json:"id"`
	Title          *string `json:"title"`
	URL            string  `json:"url"`
	Snippet        *string `json:"snippet"`
	ReferenceIndex int     `json:"referenceIndex"`
}

// Engine scans text against a configured pattern table.
type Engine struct {
	patterns []Pattern
}

// NewEngine builds an engine over the given patterns; with none given it
// uses DefaultPatterns.
func NewEngine(patterns ...Pattern) *Engine {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Engine{patterns: patterns}
}

// Extract returns the citations found in text, deduplicated
// case-insensitively and ordered by first occurrence.
func (e *Engine) Extract(text string) []string {
	type hit struct {
		pos   int
		value string
	}
	var hits []hit
	seen := make(map[string]struct{})
	for _, p := range e.patterns {
		for _, loc := range p.Expr.FindAllStringIndex(text, -1) {
			value := strings.TrimSpace(text[loc[0]:loc[1]])
			key := strings.ToLower(value)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			hits = append(hits, hit{pos: loc[0], value: value})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.value
	}
	return out
}

// LookupURL builds the search link for a citation. Pure string work, no
// network access.
func LookupURL(query string) string {
	return adiletSearchBase + "?q=" + url.QueryEscape(query)
}

var markerAfter = regexp.MustCompile(`^\s*\[\d+\]`)

// insertMarker places " [idx]" after the first occurrence of needle that
// is not already followed by a marker. When no such occurrence exists the
// marker is appended at the end, unless it is already present anywhere.
func insertMarker(text, needle string, idx int) string {
	needleRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(needle))
	for _, loc := range needleRe.FindAllStringIndex(text, -1) {
		if markerAfter.MatchString(text[loc[1]:]) {
			continue
		}
		return text[:loc[1]] + fmt.Sprintf(" [%d]", idx) + text[loc[1]:]
	}

	marker := fmt.Sprintf("[%d]", idx)
	if strings.Contains(text, marker) {
		return text
	}
	if text == "" {
		return marker
	}
	sep := ""
	if !strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "\n") {
		sep = " "
	}
	return text + sep + marker
}

// Annotate extracts citations from answer, inserts inline markers and
// returns the annotated text with its source list. Reference indices are
// assigned 1-based in order of first appearance. Running Annotate on its
// own output changes nothing: already-marked citations are left alone.
func (e *Engine) Annotate(answer string) (string, []Source) {
	cites := e.Extract(answer)
	if len(cites) == 0 {
		return answer, []Source{}
	}

	annotated := answer
	sources := make([]Source, 0, len(cites))
	for i, cite := range cites {
		id := i + 1
		title := cite
		sources = append(sources, Source{
			ID:             id,
			Title:          &title,
			URL:            LookupURL(cite),
			ReferenceIndex: id,
		})
		annotated = insertMarker(annotated, cite, id)
	}
	return annotated, sources
}

// AppendSourcesBlock renders the extracted citations as a trailing
// human-readable block instead of inline markers.
func (e *Engine) AppendSourcesBlock(answer string) string {
	cites := e.Extract(answer)
	if len(cites) == 0 {
		return answer
	}
	lines := []string{"", "Источники:"}
	for _, cite := range cites {
		lines = append(lines, fmt.Sprintf("- %s — %s", cite, LookupURL(cite)))
	}
	return strings.TrimRightFunc(answer, unicode.IsSpace) + "\n" + strings.Join(lines, "\n") + "\n"
}

// EnsureMarkers appends a [id] marker for every source whose marker does
// not appear anywhere in text, in ascending id order.
func EnsureMarkers(text string, sources []Source) string {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	annotated := text
	for _, src := range ordered {
		if src.ID <= 0 {
			continue
		}
		marker := fmt.Sprintf("[%d]", src.ID)
		if strings.Contains(annotated, marker) {
			continue
		}
		if annotated == "" {
			annotated = marker
			continue
		}
		sep := ""
		if !strings.HasSuffix(annotated, " ") && !strings.HasSuffix(annotated, "\n") {
			sep = " "
		}
		annotated = annotated + sep + marker
	}
	return annotated
}

// NormalizeSources converts a heterogeneous upstream source list (maps or
// bare URL strings) into Sources with dense ids. Records carrying a valid,
// positive, unused id keep it; all others are assigned the lowest unused
// positive integers in scan order. The result is sorted by id.
func NormalizeSources(raw []any) []Source {
	var out []Source
	var candidates []int

	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			u := firstString(v, "url", "link")
			if strings.TrimSpace(u) == "" {
				continue
			}
			out = append(out, Source{
				Title:          optString(v, "title", "name"),
				URL:            strings.TrimSpace(u),
				Snippet:        optString(v, "snippet", "description", "preview"),
				ReferenceIndex: firstInt(v, "referenceIndex", "id", "index", "ordinal"),
			})
			candidates = append(candidates, firstInt(v, "id", "index", "ordinal", "order"))
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, Source{URL: strings.TrimSpace(v)})
			candidates = append(candidates, 0)
		}
	}

	// Explicit valid ids win; duplicates and the rest get gap-filled below.
	used := make(map[int]bool)
	for i := range out {
		if candidates[i] > 0 && !used[candidates[i]] {
			out[i].ID = candidates[i]
			used[candidates[i]] = true
		}
	}
	next := 1
	for i := range out {
		if out[i].ID != 0 {
			continue
		}
		for used[next] {
			next++
		}
		out[i].ID = next
		used[next] = true
		next++
	}

	for i := range out {
		if out[i].ReferenceIndex <= 0 {
			out[i].ReferenceIndex = out[i].ID
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func optString(m map[string]any, keys ...string) *string {
	if s := firstString(m, keys...); s != "" {
		return &s
	}
	return nil
}

func firstInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return 0
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
