package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"", "***@***"},
	}
	for _, tc := range cases {
		if got := RedactEmail(tc.in); got != tc.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"bsn_1234567890abcd", "***abcd"},
		{"abcd", "***"},
		{"", "***"},
		{"abcde", "***bcde"},
	}
	for _, tc := range cases {
		if got := RedactToken(tc.in); got != tc.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
