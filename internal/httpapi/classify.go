package httpapi

import "strings"

// isNativeKey reports whether bearer matches one of the native
// known provider-key prefixes: sk-or-* (OpenRouter), sk-*
// other than sk-or- (OpenAI), or AIza* (Gemini). A native key carries
// no identity, no ledger attribution, and no budget check.
func isNativeKey(bearer string) bool {
	switch {
	case strings.HasPrefix(bearer, "sk-or-"):
		return true
	case strings.HasPrefix(bearer, "sk-"):
		return true
	case strings.HasPrefix(bearer, "AIza"):
		return true
	default:
		return false
	}
}
