package drive

import (
	"fmt"
	"regexp"
)

// LinkKind distinguishes what a shared Drive URL points at.
type LinkKind string

const (
	LinkFolder LinkKind = "folder"
	LinkFile   LinkKind = "file"
)

var linkPatterns = []struct {
	re   *regexp.Regexp
	kind LinkKind
}{
	{regexp.MustCompile(`folders/([a-zA-Z0-9_-]+)`), LinkFolder},
	{regexp.MustCompile(`document/d/([a-zA-Z0-9_-]+)`), LinkFile},
	{regexp.MustCompile(`spreadsheets/d/([a-zA-Z0-9_-]+)`), LinkFile},
	{regexp.MustCompile(`presentation/d/([a-zA-Z0-9_-]+)`), LinkFile},
	{regexp.MustCompile(`file/d/([a-zA-Z0-9_-]+)`), LinkFile},
}

// ParseLink extracts the Drive object id from a shared URL and reports
// whether it names a folder or a single file.
func ParseLink(url string) (string, LinkKind, error) {
	for _, p := range linkPatterns {
		if m := p.re.FindStringSubmatch(url); m != nil {
			return m[1], p.kind, nil
		}
	}
	return "", "", fmt.Errorf("unrecognized drive link: %s", url)
}
