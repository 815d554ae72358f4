package livescript

import (
	"regexp"
	"strings"

	"mpath/internal/engine/model"
)

var (
	sectionLine = regexp.MustCompile(`^\s*%%(\s|$)`)
	commentLine = regexp.MustCompile(`^\s*%`)
	// liveMarker matches the markup MATLAB writes into plain-text live code.
	liveMarker = regexp.MustCompile(`(?m)^\s*%\[(text|appendix|output:[^\]]*|control:[^\]]*)\]`)
)

// IsLiveCode reports whether a .m file carries plain-text live code markup.
func IsLiveCode(src []byte) bool {
	return liveMarker.Match(src)
}

// SplitSections splits plain-text live code on %% lines. A section made only
// of comments is text; anything else is code. The divider line itself is
// not part of the content.
func SplitSections(source string) []model.Section {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	var (
		parts   []string
		current []string
	)
	for _, line := range strings.SplitAfter(source, "\n") {
		if line == "" {
			continue
		}
		if sectionLine.MatchString(line) && len(current) > 0 {
			parts = append(parts, strings.Join(current, ""))
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, ""))
	}

	var sections []model.Section
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		content := stripHeader(part)
		if strings.TrimSpace(content) == "" {
			continue
		}
		sections = append(sections, model.Section{Kind: classify(part), Content: content})
	}
	return sections
}

func classify(part string) model.SectionKind {
	var body []string
	for _, l := range strings.Split(part, "\n") {
		if strings.TrimSpace(l) != "" {
			body = append(body, l)
		}
	}
	if len(body) > 0 && sectionLine.MatchString(body[0]) {
		body = body[1:]
	}
	for _, l := range body {
		if !commentLine.MatchString(l) {
			return model.SectionCode
		}
	}
	return model.SectionText
}

func stripHeader(part string) string {
	first, rest, found := strings.Cut(part, "\n")
	if sectionLine.MatchString(first) {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return part
}
