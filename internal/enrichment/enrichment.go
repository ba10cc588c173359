// Package enrichment filters and tidies batch NLP results before they are
// stored alongside a transcript.
package enrichment

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transcript-indexer-go/internal/types"
)

const (
	DefaultEntityThreshold    = 0.5
	DefaultKeyPhraseThreshold = 0.5

	TypePerson         = "PERSON"
	TypeLocation       = "LOCATION"
	TypeOrganization   = "ORGANIZATION"
	TypeQuantity       = "QUANTITY"
	TypeCommercialItem = "COMMERCIAL_ITEM"
	TypeTitle          = "TITLE"

	// ProductsAndTitles replaces COMMERCIAL_ITEM and TITLE after clean-up.
	ProductsAndTitles = "Products_and_Titles"
)

// Options holds the confidence thresholds.
type Options struct {
	EntityThreshold    float64
	KeyPhraseThreshold float64
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		EntityThreshold:    DefaultEntityThreshold,
		KeyPhraseThreshold: DefaultKeyPhraseThreshold,
	}
}

// EntitySet maps an entity type to its distinct texts.
type EntitySet map[string]map[string]struct{}

func (s EntitySet) add(typ, text string) {
	if s[typ] == nil {
		s[typ] = map[string]struct{}{}
	}
	s[typ][text] = struct{}{}
}

// Lists flattens the set into sorted slices.
func (s EntitySet) Lists() map[string][]string {
	out := make(map[string][]string, len(s))
	for typ, texts := range s {
		out[typ] = sortedKeys(texts)
	}
	return out
}

// KeyPhrases keeps phrases at or above the threshold, without duplicates.
func KeyPhrases(resp types.BatchKeyPhrasesResponse, opts Options, log logrus.FieldLogger) []string {
	logBatchErrors(log, "batch_detect_key_phrases", resp.ErrorList)

	set := map[string]struct{}{}
	for _, result := range resp.ResultList {
		for _, phrase := range result.KeyPhrases {
			if phrase.Score >= opts.KeyPhraseThreshold {
				set[phrase.Text] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// Entities keeps entities at or above the threshold, drops quantities and
// title-cases names of people, places and organisations.
func Entities(resp types.BatchEntitiesResponse, opts Options, log logrus.FieldLogger) EntitySet {
	logBatchErrors(log, "batch_detect_entities", resp.ErrorList)

	set := EntitySet{}
	for _, result := range resp.ResultList {
		for _, e := range result.Entities {
			if e.Score < opts.EntityThreshold || e.Type == TypeQuantity {
				continue
			}
			text := e.Text
			switch e.Type {
			case TypeLocation, TypePerson, TypeOrganization:
				if !isUpper(text) {
					text = capWords(text)
				}
			}
			set.add(e.Type, text)
		}
	}
	return set
}

// CleanUp removes person names contained in longer ones and folds commercial
// items and titles into ProductsAndTitles.
func CleanUp(entities map[string][]string, log logrus.FieldLogger) {
	if people, ok := entities[TypePerson]; ok {
		duplicates := FindDuplicatePersons(people)
		for _, d := range duplicates {
			log.WithField("person", d).Debug("dropping person contained in a longer name")
		}
		entities[TypePerson] = without(people, duplicates)
	}

	if items, ok := entities[TypeCommercialItem]; ok {
		entities[ProductsAndTitles] = items
		delete(entities, TypeCommercialItem)
	}
	if titles, ok := entities[TypeTitle]; ok {
		entities[ProductsAndTitles] = mergeDistinct(entities[ProductsAndTitles], titles)
		delete(entities, TypeTitle)
	}
}

// FindDuplicatePersons returns every name that is a substring of another name in the list.
func FindDuplicatePersons(people []string) []string {
	var duplicates []string
	seen := map[string]bool{}
	mark := func(name string) {
		if !seen[name] {
			seen[name] = true
			duplicates = append(duplicates, name)
		}
	}
	for i, person := range people {
		for _, other := range people[i+1:] {
			if strings.Contains(other, person) {
				mark(person)
			}
			if strings.Contains(person, other) {
				mark(other)
			}
		}
	}
	return duplicates
}

// Process runs the whole post-processing step and returns the entity lists and key phrases.
func Process(entities types.BatchEntitiesResponse, phrases types.BatchKeyPhrasesResponse, opts Options, log logrus.FieldLogger) (map[string][]string, []string) {
	lists := Entities(entities, opts, log).Lists()
	CleanUp(lists, log)
	return lists, KeyPhrases(phrases, opts, log)
}

func logBatchErrors(log logrus.FieldLogger, op string, errs []types.BatchItemError) {
	if len(errs) == 0 {
		return
	}
	for _, e := range errs {
		log.WithFields(logrus.Fields{
			"operation":     op,
			"index":         e.Index,
			"error_code":    e.ErrorCode,
			"error_message": e.ErrorMessage,
		}).Error("encountered error during " + op)
	}
}

// capWords upper-cases the first letter of each whitespace-separated word,
// lower-cases the rest and joins the words with single spaces.
func capWords(s string) string {
	lower := cases.Lower(language.Und)
	words := strings.Fields(s)
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + lower.String(w[size:])
	}
	return strings.Join(words, " ")
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func without(list, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}

func mergeDistinct(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
