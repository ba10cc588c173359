package types

// Entity is a detected named entity.
type Entity struct {
	Type        string  `json:"Type"`
	Text        string  `json:"Text"`
	Score       float64 `json:"Score"`
	BeginOffset int     `json:"BeginOffset,omitempty"`
	EndOffset   int     `json:"EndOffset,omitempty"`
}

// KeyPhrase is a detected key phrase.
type KeyPhrase struct {
	Text        string  `json:"Text"`
	Score       float64 `json:"Score"`
	BeginOffset int     `json:"BeginOffset,omitempty"`
	EndOffset   int     `json:"EndOffset,omitempty"`
}

// BatchItemError reports a failed document inside a batch call.
type BatchItemError struct {
	Index        int    `json:"Index"`
	ErrorCode    string `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
}

type EntitiesResult struct {
	Index    int      `json:"Index"`
	Entities []Entity `json:"Entities"`
}

type KeyPhrasesResult struct {
	Index      int         `json:"Index"`
	KeyPhrases []KeyPhrase `json:"KeyPhrases"`
}

type BatchEntitiesResponse struct {
	ResultList []EntitiesResult `json:"ResultList"`
	ErrorList  []BatchItemError `json:"ErrorList"`
}

type BatchKeyPhrasesResponse struct {
	ResultList []KeyPhrasesResult `json:"ResultList"`
	ErrorList  []BatchItemError   `json:"ErrorList"`
}
