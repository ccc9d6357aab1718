package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ArticleList ist eine Liste von Artikeln für den Remote-Abruf, z.B.:
//
//	domain: de.wikipedia.org
//	as_of: 2024-01-01T00:00:00Z
//	articles:
//	  - Berlin
//	  - Hamburg
type ArticleList struct {
	Domain   string    `yaml:"domain"`
	AsOf     time.Time `yaml:"as_of"`
	Articles []string  `yaml:"articles"`
}

// LoadArticleList liest eine Artikelliste aus einer YAML-Datei. Leere Titel und Duplikate werden entfernt.
func LoadArticleList(path string) (*ArticleList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list ArticleList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse article list %s: %w", path, err)
	}

	seen := make(map[string]bool, len(list.Articles))
	titles := list.Articles[:0]
	for _, t := range list.Articles {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		titles = append(titles, t)
	}
	list.Articles = titles
	return &list, nil
}
