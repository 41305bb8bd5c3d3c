package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"links and mentions", "Great debate tonight @alice.bsky.social! https://example.com/x", "Great debate tonight"},
		{"markdown link", "Read [the report](https://example.com/report) now", "Read the report now"},
		{"punctuation and whitespace", "What   a\n\nday!!! :-)", "What a day"},
		{"emphasis", "this is **really** bad", "this is really bad"},
		{"unicode letters survive", "¡Qué día tan bonito! 😀", "Qué día tan bonito"},
		{"only noise", "@bob https://t.co/abc ...", ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, CleanText(testCase.in))
		})
	}
}

func TestRemoveLinks(t *testing.T) {
	assert.Equal(t, "see docs and ", RemoveLinks("see [docs](https://go.dev) and www.example.com"))
}
