package policy

import "testing"

func TestLookupFallbackOrder(t *testing.T) {
	budgets["alice@example.com"] = Budget{Limit: 5, Days: 7}
	budgets["@example.com"] = Budget{Limit: 2, Days: 1}
	defer func() {
		delete(budgets, "alice@example.com")
		delete(budgets, "@example.com")
	}()

	tests := []struct {
		email string
		want  Budget
	}{
		{"alice@example.com", Budget{5, 7}},
		{"bob@example.com", Budget{2, 1}},
		{"nobody@elsewhere.test", budgets["*"]},
	}
	for _, tt := range tests {
		if got := Lookup(tt.email); got != tt.want {
			t.Errorf("Lookup(%q) = %+v, want %+v", tt.email, got, tt.want)
		}
	}
}

func TestLookupImplicitDefault(t *testing.T) {
	saved := budgets["*"]
	delete(budgets, "*")
	defer func() { budgets["*"] = saved }()

	if got := Lookup("anyone@anywhere.test"); got != defaultBudget {
		t.Errorf("Lookup with no wildcard = %+v, want %+v", got, defaultBudget)
	}
}

func TestSalt(t *testing.T) {
	salts["revoked@example.com"] = "v2"
	defer delete(salts, "revoked@example.com")

	if s, ok := Salt("revoked@example.com"); !ok || s != "v2" {
		t.Errorf("Salt(revoked) = (%q, %v), want (%q, true)", s, ok, "v2")
	}
	if _, ok := Salt("clean@example.com"); ok {
		t.Error("Salt(clean) should not have an entry")
	}
}
