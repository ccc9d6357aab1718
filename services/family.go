package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Family bestimmt die Projektfamilie einer Wiki-Domain, z.B. "Wikipedia" für "de.wikipedia.org".
func Family(domain string) string {
	switch domain {
	case "species.wikimedia.org":
		return "Wikispecies"
	case "commons.wikimedia.org":
		return "Wikimedia Commons"
	}
	parts := strings.Split(domain, ".")
	if len(parts) == 3 {
		return capitalize(parts[1])
	}
	return capitalize(parts[0])
}

// LanguageCode ist das erste Label der Domain ("en" für "en.wikipedia.org").
func LanguageCode(domain string) string {
	code, _, _ := strings.Cut(domain, ".")
	return code
}

// ArticleURL baut die kanonische Artikel-URL mit Unterstrichen statt Leerzeichen.
func ArticleURL(domain, title string) string {
	return "https://" + domain + "/wiki/" + strings.ReplaceAll(title, " ", "_")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
