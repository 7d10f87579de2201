package domain

import "strings"

// DefaultLanguage is used when the caller omits a language code.
const DefaultLanguage = "en"

// PickLanguage selects a caption track by language code. An exact
// match always wins; otherwise the first track whose code is prefixed
// by the requested code, in listing order, is taken (a request for
// "en" may resolve to "en-US"). Returns the index into codes.
func PickLanguage(requested string, codes []string) (int, bool) {
	want := normalizeLang(requested)
	if want == "" {
		return 0, false
	}

	for i, c := range codes {
		if normalizeLang(c) == want {
			return i, true
		}
	}
	for i, c := range codes {
		if strings.HasPrefix(normalizeLang(c), want+"-") {
			return i, true
		}
	}
	return 0, false
}

func normalizeLang(v string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "_", "-"))
}
