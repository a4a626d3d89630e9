package tollgate

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidKey validates an object key requested by a client before it is
// put into a grant. It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - has no ".." segment (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # $ { }
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not start or end with a space
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace other than ' '
//
// '$', '{' and '}' are rejected so a client cannot smuggle a ${filename}
// placeholder into an upload key.
func IsValidKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if k[0] == '/' {
		return false
	}

	if strings.HasSuffix(k, "/") {
		return false
	}

	if slices.Contains(strings.Split(k, "/"), "..") {
		return false
	}

	if strings.Contains(k, "//") {
		return false
	}

	if strings.ContainsAny(k, `\?#${}`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if strings.HasPrefix(k, "./") || strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}

	if k[0] == ' ' || k[len(k)-1] == ' ' {
		return false
	}

	for _, r := range k {
		if r == ' ' {
			continue
		}
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
