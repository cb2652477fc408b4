package middleware

import (
	"errors"
	"testing"
)

func TestParseAuthHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"absent", "", "", nil},
		{"other scheme", "Basic dXNlcjpwdw==", "", nil},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer lowercase scheme ignored", "bearer abc", "", nil},
		{"bearer no credential", "Bearer", "", ErrBadAuthorizationHeader},
		{"bearer extra tokens", "Bearer abc def", "", ErrBadAuthorizationHeader},
		{"whitespace only", "   ", "", nil},
	}
	for _, tc := range cases {
		got, err := ParseAuthHeader(tc.header)
		if got != tc.want || !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: ParseAuthHeader(%q) = (%q, %v), want (%q, %v)",
				tc.name, tc.header, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestGetPrincipalDefaultsToAnonymous(t *testing.T) {
	p := Principal{}
	if !p.IsAnonymous() {
		t.Error("zero principal is not anonymous")
	}
	if p.AccountID() != "" {
		t.Error("anonymous principal has an account id")
	}
}
