package frames

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Faultbox/meshseq/internal/errs"
)

const frameGroup = "frame"

// Pattern is a compiled input glob.
//
//	#      frame number digits
//	{...}  capture; captures form the sequence name
//	?      any single character
//	*      any run of characters within one path segment
//	**     any number of whole path segments
//
// \{ and \} match literal braces.
type Pattern struct {
	raw      string
	re       *regexp.Regexp
	numbered bool
	base     string
}

// Compile translates a glob into a Pattern. Without allowStatic the
// pattern must contain exactly one #.
func Compile(glob string, allowStatic bool) (*Pattern, error) {
	fail := func(reason string) error {
		return &errs.PatternError{Pattern: glob, Reason: reason}
	}
	if glob == "" {
		return nil, fail("empty pattern")
	}

	hashes := strings.Count(glob, "#")
	switch {
	case hashes > 1:
		return nil, fail("more than one # frame placeholder")
	case hashes == 0 && !allowStatic:
		return nil, fail("missing # frame placeholder")
	}

	var sb strings.Builder
	sb.WriteByte('^')
	depth := 0
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 < len(runes) && (runes[i+1] == '{' || runes[i+1] == '}') {
				sb.WriteString(regexp.QuoteMeta(string(runes[i+1])))
				i++
				continue
			}
			sb.WriteString(`\\`)
		case '#':
			sb.WriteString(`(?P<` + frameGroup + `>[0-9]+)`)
		case '{':
			depth++
			sb.WriteByte('(')
		case '}':
			depth--
			if depth < 0 {
				return nil, fail("unbalanced }")
			}
			sb.WriteByte(')')
		case '?':
			sb.WriteString(`[^/]`)
		case '*':
			stars := 1
			for i+1 < len(runes) && runes[i+1] == '*' {
				stars++
				i++
			}
			atStart := i-stars+1 == 0 || runes[i-stars] == '/'
			switch {
			case stars > 1 && atStart && i+1 < len(runes) && runes[i+1] == '/':
				sb.WriteString(`(?:[^/]*/)*`)
				i++
			case stars > 1 && atStart && i+1 == len(runes):
				sb.WriteString(`.*`)
			default:
				sb.WriteString(`[^/]*`)
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if depth != 0 {
		return nil, fail("unbalanced {")
	}
	sb.WriteByte('$')

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fail(err.Error())
	}
	return &Pattern{raw: glob, re: re, numbered: hashes == 1, base: literalBase(glob)}, nil
}

// literalBase returns the leading directories of glob that contain no
// wildcard, so discovery does not walk more of the tree than needed.
func literalBase(glob string) string {
	segs := strings.Split(glob, "/")
	var base []string
	for _, s := range segs[:len(segs)-1] {
		if strings.ContainsAny(s, "#{}*?\\") {
			break
		}
		base = append(base, s)
	}
	if len(base) == 1 && base[0] == "" {
		return "/"
	}
	return strings.Join(base, "/")
}

// String returns the source glob.
func (p *Pattern) String() string { return p.raw }

// Regexp returns the translated expression.
func (p *Pattern) Regexp() string { return p.re.String() }

// Numbered reports whether the pattern carries a # placeholder.
func (p *Pattern) Numbered() bool { return p.numbered }

// Match tests a slash-separated path. The sequence name is the
// concatenation of all captures. Paths without a frame get frame 0.
func (p *Pattern) Match(path string) (name string, frame int, ok bool, err error) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return "", 0, false, nil
	}
	var sb strings.Builder
	for i, group := range p.re.SubexpNames() {
		if i == 0 {
			continue
		}
		if group == frameGroup {
			if m[i] == "" {
				continue
			}
			n, perr := strconv.Atoi(m[i])
			if perr != nil || n < 0 {
				return "", 0, false, &errs.PatternError{
					Pattern: p.raw,
					Path:    path,
					Reason:  "frame number " + m[i] + " is not a non-negative integer",
				}
			}
			frame = n
			continue
		}
		sb.WriteString(m[i])
	}
	return sb.String(), frame, true, nil
}
