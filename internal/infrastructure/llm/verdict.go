package llm

import (
	"fmt"
	"regexp"
	"strings"

	"newsmonitor/internal/domain"
)

var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)]|\(\d+\))\s*`)

// ParseVerdict interprets a model reply that starts with "OK" or "Caution".
// Replies without either keyword are classified by wording; an empty reply is
// a malformed response.
func ParseVerdict(reply string) (domain.AnalysisVerdict, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: empty model reply", domain.ErrAnalysisService)
	}

	upper := strings.ToUpper(reply)
	switch {
	case strings.HasPrefix(upper, "OK"):
		return domain.AnalysisVerdict{Status: domain.VerdictClean}, nil
	case strings.HasPrefix(upper, "CAUTION"):
		rest := strings.TrimLeft(reply[len("caution"):], " :,-.\n\t")
		return flagged(rest, reply), nil
	}

	lower := strings.ToLower(reply)
	if strings.Contains(lower, "no mistakes") || strings.Contains(lower, "no errors") {
		return domain.AnalysisVerdict{Status: domain.VerdictClean}, nil
	}
	return flagged(reply, reply), nil
}

func flagged(body, whole string) domain.AnalysisVerdict {
	issues := splitIssues(body)
	if len(issues) == 0 {
		issues = []string{whole}
	}
	return domain.AnalysisVerdict{Status: domain.VerdictFlagged, Issues: issues}
}

func splitIssues(body string) []string {
	var issues []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			issues = append(issues, line)
		}
	}
	return issues
}
