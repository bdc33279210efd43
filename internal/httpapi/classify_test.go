package httpapi

import "testing"

func TestIsNativeKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		bearer string
		native bool
	}{
		{"sk-or-v1-abc123", true},
		{"sk-proj-abc123", true},
		{"AIzaSyAbc123", true},
		{"some-identity-token.eyJ.sig", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isNativeKey(c.bearer); got != c.native {
			t.Errorf("isNativeKey(%q) = %v, want %v", c.bearer, got, c.native)
		}
	}
}
