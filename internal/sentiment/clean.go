package sentiment

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	mentionPattern      = regexp.MustCompile(`@[\p{L}\p{N}_.\-]+`)
	punctuationPattern  = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)
)

func RemoveLinks(input string) string {
	input = markdownLinkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := html.UnescapeString(htmlTagPattern.ReplaceAllString(string(output), " "))
	plainText = strings.Join(strings.Fields(plainText), " ")

	return RemoveLinks(plainText)
}

// CleanText prepares post text for scoring: markdown is flattened, links
// and @mentions removed, punctuation stripped and whitespace collapsed.
func CleanText(text string) string {
	text = RemoveLinks(text)
	text = ConvertMarkdownToText(text)
	text = mentionPattern.ReplaceAllString(text, "")
	text = punctuationPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
