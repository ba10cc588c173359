package enrichment

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-indexer-go/internal/types"
)

func entities(es ...types.Entity) types.BatchEntitiesResponse {
	return types.BatchEntitiesResponse{ResultList: []types.EntitiesResult{{Index: 0, Entities: es}}}
}

func TestKeyPhrases_FiltersAndDeduplicates(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := types.BatchKeyPhrasesResponse{ResultList: []types.KeyPhrasesResult{
		{Index: 0, KeyPhrases: []types.KeyPhrase{
			{Text: "the fire", Score: 0.99},
			{Text: "a maybe", Score: 0.49},
			{Text: "the road", Score: 0.5},
		}},
		{Index: 1, KeyPhrases: []types.KeyPhrase{
			{Text: "the fire", Score: 0.8},
		}},
	}}

	phrases := KeyPhrases(resp, DefaultOptions(), log)

	assert.ElementsMatch(t, []string{"the fire", "the road"}, phrases)
}

func TestKeyPhrases_Idempotent(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := types.BatchKeyPhrasesResponse{ResultList: []types.KeyPhrasesResult{
		{KeyPhrases: []types.KeyPhrase{{Text: "b", Score: 0.7}, {Text: "a", Score: 0.9}, {Text: "b", Score: 0.6}}},
	}}
	first := KeyPhrases(resp, DefaultOptions(), log)

	var again []types.KeyPhrase
	for _, p := range first {
		again = append(again, types.KeyPhrase{Text: p, Score: 1.0})
	}
	second := KeyPhrases(types.BatchKeyPhrasesResponse{
		ResultList: []types.KeyPhrasesResult{{KeyPhrases: again}},
	}, DefaultOptions(), log)

	assert.ElementsMatch(t, first, second)
}

func TestKeyPhrases_MissingResultList(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	assert.Empty(t, KeyPhrases(types.BatchKeyPhrasesResponse{}, DefaultOptions(), log))
}

func TestKeyPhrases_LogsErrorList(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	resp := types.BatchKeyPhrasesResponse{
		ResultList: []types.KeyPhrasesResult{{Index: 0, KeyPhrases: []types.KeyPhrase{{Text: "kept", Score: 0.9}}}},
		ErrorList:  []types.BatchItemError{{Index: 1, ErrorCode: "TEXT_SIZE_LIMIT_EXCEEDED", ErrorMessage: "too long"}},
	}

	phrases := KeyPhrases(resp, DefaultOptions(), log)

	assert.Equal(t, []string{"kept"}, phrases)
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "TEXT_SIZE_LIMIT_EXCEEDED", entry.Data["error_code"])
	assert.Equal(t, 1, entry.Data["index"])
}

func TestEntities_FilteringAndCasing(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := entities(
		types.Entity{Type: "LOCATION", Text: "new  westminster", Score: 0.9},
		types.Entity{Type: "ORGANIZATION", Text: "RCMP", Score: 0.95},
		types.Entity{Type: "PERSON", Text: "jane DOE", Score: 0.8},
		types.Entity{Type: "QUANTITY", Text: "two cars", Score: 0.99},
		types.Entity{Type: "DATE", Text: "last tuesday", Score: 0.7},
		types.Entity{Type: "EVENT", Text: "the fire", Score: 0.2},
	)

	set := Entities(resp, DefaultOptions(), log).Lists()

	assert.Equal(t, map[string][]string{
		"LOCATION":     {"New Westminster"},
		"ORGANIZATION": {"RCMP"},
		"PERSON":       {"Jane Doe"},
		"DATE":         {"last tuesday"},
	}, set)
}

func TestEntities_CustomThreshold(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := entities(
		types.Entity{Type: "DATE", Text: "today", Score: 0.7},
		types.Entity{Type: "DATE", Text: "tomorrow", Score: 0.9},
	)

	set := Entities(resp, Options{EntityThreshold: 0.8}, log).Lists()

	assert.Equal(t, []string{"tomorrow"}, set["DATE"])
}

func TestEntities_MissingResultList(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	assert.Empty(t, Entities(types.BatchEntitiesResponse{}, DefaultOptions(), log))
}

func TestProcess_PersonSubstringRemoved(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := entities(
		types.Entity{Type: "PERSON", Text: "john", Score: 0.9},
		types.Entity{Type: "PERSON", Text: "John Smith", Score: 0.9},
	)

	lists, phrases := Process(resp, types.BatchKeyPhrasesResponse{}, DefaultOptions(), log)

	assert.Equal(t, []string{"John Smith"}, lists["PERSON"])
	assert.Empty(t, phrases)
}

func TestProcess_ProductsAndTitlesMerge(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	resp := entities(
		types.Entity{Type: "COMMERCIAL_ITEM", Text: "Widget", Score: 0.9},
		types.Entity{Type: "TITLE", Text: "Manager", Score: 0.9},
	)

	lists, _ := Process(resp, types.BatchKeyPhrasesResponse{}, DefaultOptions(), log)

	assert.ElementsMatch(t, []string{"Widget", "Manager"}, lists[ProductsAndTitles])
	assert.NotContains(t, lists, TypeCommercialItem)
	assert.NotContains(t, lists, TypeTitle)
}

func TestCleanUp_TitleOnly(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	lists := map[string][]string{"TITLE": {"Dispatcher"}}

	CleanUp(lists, log)

	assert.Equal(t, map[string][]string{ProductsAndTitles: {"Dispatcher"}}, lists)
}

func TestFindDuplicatePersons(t *testing.T) {
	tests := []struct {
		name   string
		people []string
		want   []string
	}{
		{"none", []string{"Alice", "Bob"}, nil},
		{"shorter first", []string{"Ann", "Ann Lee"}, []string{"Ann"}},
		{"shorter second", []string{"Ann Lee", "Ann"}, []string{"Ann"}},
		{"case sensitive", []string{"ann", "Ann Lee"}, nil},
		{"chain", []string{"Lee", "Ann Lee", "Mary Ann Lee"}, []string{"Lee", "Ann Lee"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, FindDuplicatePersons(tt.people))
		})
	}
}

func TestIsUpperAndCapWords(t *testing.T) {
	assert.True(t, isUpper("RCMP"))
	assert.True(t, isUpper("B.C. 2"))
	assert.False(t, isUpper("123"))
	assert.False(t, isUpper("Rcmp"))

	assert.Equal(t, "Prince George", capWords("prince   GEORGE"))
	assert.Equal(t, "Jean-luc Picard", capWords("jean-luc picard"))
	assert.Equal(t, "3m Company", capWords("3m company"))
	assert.Equal(t, "O'neil", capWords("o'NEIL"))
	assert.Equal(t, "École Polytechnique", capWords("école polytechnique"))
}
