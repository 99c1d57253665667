package export

import (
	"strings"

	"github.com/meigma/decima/namehash"
)

// RelPath turns a display name into a safe slash-separated relative path.
//
// The name is sanitized the way catalog names are (".core" is appended to
// names without a known suffix), empty, "." and ".." segments are dropped and
// characters that are invalid in file names on common platforms are replaced
// with '_'. Names that reduce to nothing yield "".
func RelPath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return cleanPath(namehash.Sanitize(name))
}

// cleanPath drops unsafe segments from a slash-separated path and replaces
// invalid characters.
func cleanPath(p string) string {
	segs := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	keep := segs[:0]
	for _, seg := range segs {
		seg = strings.Map(replaceInvalid, strings.TrimSpace(seg))
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		keep = append(keep, seg)
	}
	return strings.Join(keep, "/")
}

func replaceInvalid(r rune) rune {
	if r < 0x20 || r == 0x7F || strings.ContainsRune(`<>:"|?*`, r) {
		return '_'
	}
	return r
}
