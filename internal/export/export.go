package export

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var extPattern = regexp.MustCompile(`\.[^/.]+$`)

// BaseName removes the last extension: "notes.txt" -> "notes", "archive.tar.gz" -> "archive.tar".
func BaseName(fileName string) string {
	return extPattern.ReplaceAllString(fileName, "")
}

// DownloadName is the suggested name of the downloaded summary.
func DownloadName(fileName string) string {
	return BaseName(fileName) + "_summary.txt"
}

// Preview returns the first n characters followed by "..." when text is longer.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

// EncodeURIComponent escapes like the browser function of the same name,
// leaving A-Z a-z 0-9 - _ . ! ~ * ' ( ) untouched.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return unreserved.Replace(escaped)
}

var unreserved = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

func firstN(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

// Target names a share destination.
type Target string

const (
	WhatsApp Target = "whatsapp"
	Twitter  Target = "twitter"
	LinkedIn Target = "linkedin"
	Facebook Target = "facebook"
)

var Targets = []Target{WhatsApp, Twitter, LinkedIn, Facebook}

// Payload is what gets shared.
type Payload struct {
	FileName string
	Summary  string
	PageURL  string
}

// ShareURL builds the deep link for a target. Opening it is up to the caller.
func ShareURL(target Target, p Payload) (string, error) {
	switch target {
	case WhatsApp:
		text := fmt.Sprintf("Summary of %s:\n\n%s", p.FileName, p.Summary)
		return "https://wa.me/?text=" + EncodeURIComponent(text), nil
	case Twitter:
		text := fmt.Sprintf("Check out this AI-generated summary of %s", p.FileName)
		return "https://twitter.com/intent/tweet?text=" + EncodeURIComponent(text) +
			"&url=" + EncodeURIComponent(p.PageURL), nil
	case LinkedIn:
		return "https://www.linkedin.com/sharing/share-offsite/?url=" + EncodeURIComponent(p.PageURL) +
			"&title=" + EncodeURIComponent("AI Summary: "+p.FileName) +
			"&summary=" + EncodeURIComponent(firstN(p.Summary, 200)+"..."), nil
	case Facebook:
		return "https://www.facebook.com/sharer/sharer.php?u=" + EncodeURIComponent(p.PageURL), nil
	default:
		return "", fmt.Errorf("unknown share target %q", target)
	}
}
