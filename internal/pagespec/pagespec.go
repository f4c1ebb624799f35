// Package pagespec serializes per-page dimensions into the crunched page
// spec format: runs of identical "WxH" values are de-duplicated into
// "WxH:indices" groups, e.g. "612x792:0-24,26;612x1008:25".
package pagespec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Letter-size fallback used when a page's entry is missing or malformed.
const (
	DefaultWidth  = 612.0
	DefaultHeight = 792.0
)

// Dimensions holds one page's size in PDF points.
type Dimensions struct {
	Width  float64
	Height float64
}

// String formats the dimensions as a "WxH" value.
func (d Dimensions) String() string {
	return formatFloat(d.Width) + "x" + formatFloat(d.Height)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Crunch compresses a per-page sequence of values into the delimited
// group format. Groups appear in order of each value's first occurrence.
func Crunch(values []string) string {
	type group struct {
		value string
		pages []int
	}
	var groups []group
	index := map[string]int{}
	for page, value := range values {
		i, ok := index[value]
		if !ok {
			i = len(groups)
			index[value] = i
			groups = append(groups, group{value: value})
		}
		groups[i].pages = append(groups[i].pages, page)
	}

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g.value+":"+compressRuns(g.pages))
	}
	return strings.Join(parts, ";")
}

// CrunchSpec crunches a sequence of page dimensions.
func CrunchSpec(dims []Dimensions) string {
	values := make([]string, len(dims))
	for i, d := range dims {
		values[i] = d.String()
	}
	return Crunch(values)
}

// CrunchGroups crunches a mapping of value to page numbers, as collected
// incrementally by concurrent extraction workers.
func CrunchGroups(groups map[string][]int) string {
	// Order groups by their lowest page number for a stable result.
	type group struct {
		value string
		pages []int
	}
	ordered := make([]group, 0, len(groups))
	for value, pages := range groups {
		sorted := append([]int(nil), pages...)
		sort.Ints(sorted)
		ordered = append(ordered, group{value, sorted})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].pages[0] < ordered[j].pages[0]
	})

	parts := make([]string, 0, len(ordered))
	for _, g := range ordered {
		parts = append(parts, g.value+":"+compressRuns(g.pages))
	}
	return strings.Join(parts, ";")
}

func compressRuns(pages []int) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", pages[i], pages[j]))
		} else {
			parts = append(parts, strconv.Itoa(pages[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// Uncrunch expands a crunched string back into the per-page sequence.
func Uncrunch(crunched string) ([]string, error) {
	if crunched == "" {
		return nil, nil
	}
	byPage := map[int]string{}
	maxPage := -1
	for _, part := range strings.Split(crunched, ";") {
		value, pageList, ok := cutLast(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed page spec group %q", part)
		}
		for _, entry := range strings.Split(pageList, ",") {
			if start, end, isRange := strings.Cut(entry, "-"); isRange {
				lo, err := strconv.Atoi(start)
				if err != nil {
					return nil, fmt.Errorf("malformed page range %q: %w", entry, err)
				}
				hi, err := strconv.Atoi(end)
				if err != nil {
					return nil, fmt.Errorf("malformed page range %q: %w", entry, err)
				}
				for p := lo; p <= hi; p++ {
					byPage[p] = value
					if p > maxPage {
						maxPage = p
					}
				}
			} else {
				p, err := strconv.Atoi(entry)
				if err != nil {
					return nil, fmt.Errorf("malformed page number %q: %w", entry, err)
				}
				byPage[p] = value
				if p > maxPage {
					maxPage = p
				}
			}
		}
	}

	values := make([]string, maxPage+1)
	for p, value := range byPage {
		values[p] = value
	}
	return values, nil
}

// cutLast splits on the last occurrence of sep, so dimension values that
// could themselves contain the separator never confuse parsing.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// Spec is a parsed page spec supporting out-of-range lookups.
type Spec []Dimensions

// Parse expands a crunched page spec. Malformed entries are preserved as
// default-size pages; only a structurally unparseable string errors.
func Parse(crunched string) (Spec, error) {
	values, err := Uncrunch(crunched)
	if err != nil {
		return nil, err
	}
	spec := make(Spec, len(values))
	for i, value := range values {
		spec[i] = parseDimensions(value)
	}
	return spec, nil
}

func parseDimensions(value string) Dimensions {
	w, h, ok := strings.Cut(value, "x")
	if !ok {
		return Dimensions{DefaultWidth, DefaultHeight}
	}
	width, err1 := strconv.ParseFloat(w, 64)
	height, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return Dimensions{DefaultWidth, DefaultHeight}
	}
	return Dimensions{width, height}
}

// Page returns the dimensions for a page, falling back to the default
// aspect ratio when the index is out of range. Never an error: downstream
// consumers degrade rather than fail on a missing entry.
func (s Spec) Page(i int) Dimensions {
	if i < 0 || i >= len(s) {
		return Dimensions{DefaultWidth, DefaultHeight}
	}
	return s[i]
}
