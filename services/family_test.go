package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamily(t *testing.T) {
	cases := map[string]string{
		"www.wikidata.org":      "Wikidata",
		"wikidata.org":          "Wikidata",
		"commons.wikimedia.org": "Wikimedia Commons",
		"species.wikimedia.org": "Wikispecies",
		"zh.wikipedia.org":      "Wikipedia",
		"scn.wiktionary.org":    "Wiktionary",
		"wikisource.org":        "Wikisource",
	}
	for domain, want := range cases {
		assert.Equal(t, want, Family(domain), domain)
	}
}

func TestLanguageCodeAndArticleURL(t *testing.T) {
	assert.Equal(t, "en", LanguageCode("en.wikipedia.org"))
	assert.Equal(t, "simple", LanguageCode("simple.wikipedia.org"))
	assert.Equal(t, "https://en.wikipedia.org/wiki/Barack_Obama", ArticleURL("en.wikipedia.org", "Barack Obama"))
}
