package analyzer

import "strings"

// attachComment returns the documentation for a declaration starting at
// declLine (0-based), scanning upward through the file's lines. Only
// whole lines that begin with a comment marker count; a comment trailing
// code on its line documents nothing. The scan stops at the first blank
// line or line of code, so only the comment group touching the
// declaration attaches.
func attachComment(lines []string, declLine int, r languageRules) string {
	i := declLine - 1
	if i < 0 || i >= len(lines) {
		return ""
	}
	trimmed := strings.TrimSpace(lines[i])
	if trimmed == "" {
		return ""
	}

	if marker := lineMarker(trimmed, r); marker != "" {
		var collected []string
		for i >= 0 {
			t := strings.TrimSpace(lines[i])
			m := lineMarker(t, r)
			if m == "" {
				break
			}
			collected = append(collected, stripLineMarker(t, m))
			i--
		}
		// collected bottom-up, emit in source order
		for l, h := 0, len(collected)-1; l < h; l, h = l+1, h-1 {
			collected[l], collected[h] = collected[h], collected[l]
		}
		return strings.Join(collected, "\n")
	}

	if r.blockClose != "" && strings.HasSuffix(trimmed, r.blockClose) {
		return blockCommentEndingAt(lines, i, r)
	}
	return ""
}

// lineMarker returns the line-comment marker the trimmed line starts
// with, longest match first so /// is not mistaken for //.
func lineMarker(trimmed string, r languageRules) string {
	best := ""
	for _, marker := range r.lineComments {
		if strings.HasPrefix(trimmed, marker) && len(marker) > len(best) {
			best = marker
		}
	}
	return best
}

func stripLineMarker(trimmed, marker string) string {
	rest := strings.TrimPrefix(trimmed, marker)
	rest = strings.TrimPrefix(rest, " ")
	return strings.TrimRight(rest, " \t")
}

// blockCommentEndingAt extracts the block comment whose closing marker
// sits on line end. A block that trails code on its opening line is a
// statement annotation, not documentation.
func blockCommentEndingAt(lines []string, end int, r languageRules) string {
	start := -1
	for j := end; j >= 0; j-- {
		if strings.Contains(lines[j], r.blockOpen) {
			start = j
			break
		}
	}
	if start < 0 {
		return ""
	}
	opening := lines[start]
	before := opening[:strings.Index(opening, r.blockOpen)]
	if strings.TrimSpace(before) != "" {
		return ""
	}

	var out []string
	for j := start; j <= end; j++ {
		line := lines[j]
		if j == start {
			line = line[strings.Index(line, r.blockOpen)+len(r.blockOpen):]
		}
		if j == end {
			if cut := strings.LastIndex(line, r.blockClose); cut >= 0 {
				line = line[:cut]
			}
		}
		line = strings.TrimSpace(line)
		if r.margin != "" {
			if line == r.margin {
				line = ""
			} else if strings.HasPrefix(line, r.margin+" ") {
				line = line[len(r.margin)+1:]
			} else {
				line = strings.TrimPrefix(line, r.margin)
			}
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
