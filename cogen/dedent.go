package cogen

import "strings"

// Dedent removes the longest whitespace prefix shared by every non-blank
// line of s. Blank lines are emptied. It returns the result and the number
// of bytes removed from each non-blank line.
func Dedent(s string) (string, int) {
	lines := strings.Split(s, "\n")

	var (
		common string
		found  bool
	)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		if !found {
			common, found = lead, true

			continue
		}

		n := 0
		for n < len(common) && n < len(lead) && common[n] == lead[n] {
			n++
		}

		common = common[:n]
	}

	if common == "" {
		return s, 0
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
		} else {
			lines[i] = line[len(common):]
		}
	}

	return strings.Join(lines, "\n"), len(common)
}
