package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{"éééééééé", 2}, // runes, not bytes
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	if got := EstimateMessages(msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Truncate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"shorter", "abc", 10, "abc"},
		{"exact", "abc", 3, "abc"},
		{"cut", "abcdef", 4, "abcd"},
		{"zero", "abc", 0, ""},
		{"negative", "abc", -2, ""},
		{"multibyte", "Réponse: très bien", 4, "Répo"},
		{"multibyte fits", "éé", 2, "éé"},
		{"emoji", "🏋️ go", 1, "🏋"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tc.input, tc.n); got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.input, tc.n, got, tc.want)
			}
		})
	}
}

func Test_Len(t *testing.T) {
	t.Parallel()
	if got := Len("Réponse"); got != 7 {
		t.Errorf("Len = %d, want 7", got)
	}
}
