package util

import "testing"

func TestNormalizeColumnName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim and lower", input: "  Website ", want: "website"},
		{name: "collapse inner whitespace", input: "Contact\t  Email", want: "contact email"},
		{name: "already normalized", input: "id", want: "id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeColumnName(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "contacts 2024 (final).csv", want: "contacts_2024_final_.csv"},
		{input: "<msg@example.com>", want: "msg_example.com"},
		{input: "///", want: "sheet"},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.input); got != tc.want {
			t.Fatalf("SanitizeFileName(%q)=%q want %q", tc.input, got, tc.want)
		}
	}
}

func TestDeref(t *testing.T) {
	if Deref(nil) != "" {
		t.Fatal("nil should deref to empty")
	}
	if Deref(StringPtr("x")) != "x" {
		t.Fatal("deref lost value")
	}
}
