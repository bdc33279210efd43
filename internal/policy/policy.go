// Package policy holds the two "editable source constants" of the
// gateway: the daily budget map and the token-revocation salt map.
// Both are read-only after process start; an operator changes spend
// limits or revokes a user's outstanding tokens by editing this file
// and redeploying, not through an admin API.
package policy

import "strings"

// Budget is a spend limit: the caller's ledger sum over the trailing
// Days days must stay below Limit dollars.
type Budget struct {
	Limit float64
	Days  int
}

// budgets is the ordered lookup: exact email -> "@domain" -> "*".
// Edit this map to change spend limits. An email with no matching
// entry anywhere (including no "*" row) falls back to {0, 1}, which
// blocks every non-native request (limit 0 is never satisfiable).
var budgets = map[string]Budget{
	"*": {Limit: 1.00, Days: 1},
}

// salts revokes an email's outstanding identity tokens: any token
// minted before the salt was set (or with a different salt value) is
// rejected with ErrRevoked. Edit this map and redeploy to revoke a
// user without an expiry mechanism.
var salts = map[string]string{}

// defaultBudget is returned when no entry matches at all: an implicit
// zero-limit budget, which blocks every request until policy is set.
var defaultBudget = Budget{Limit: 0, Days: 1}

// Lookup resolves the budget policy for email: exact match, then
// "@domain", then "*", then the implicit zero-limit default.
func Lookup(email string) Budget {
	email = strings.ToLower(strings.TrimSpace(email))
	if b, ok := budgets[email]; ok {
		return b
	}
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		if b, ok := budgets["@"+email[i+1:]]; ok {
			return b
		}
	}
	if b, ok := budgets["*"]; ok {
		return b
	}
	return defaultBudget
}

// Salt returns the current revocation salt for email and whether one
// is configured. A token is acceptable only when the server has no
// salt entry for the email, or the token's own salt claim matches.
func Salt(email string) (string, bool) {
	s, ok := salts[strings.ToLower(strings.TrimSpace(email))]
	return s, ok
}
