package dataset

import (
	"sort"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/types"
)

type Summary struct {
	TotalRecordings int            `json:"total_recordings"`
	ByProcedure     map[string]int `json:"by_procedure"`
	ByJurisdiction  map[string]int `json:"by_jurisdiction"`
	ByFileType      map[string]int `json:"by_file_type"`
	TopProcedures   []string       `json:"top_procedures"`
}

const unknown = "unknown"

// Summarize counts recordings by procedure, jurisdiction and content type.
func Summarize(reqs []types.RecordingRequest) Summary {
	s := Summary{
		TotalRecordings: len(reqs),
		ByProcedure:     map[string]int{},
		ByJurisdiction:  map[string]int{},
		ByFileType:      map[string]int{},
	}
	orUnknown := func(v string) string {
		if v == "" {
			return unknown
		}
		return v
	}
	for _, r := range reqs {
		s.ByProcedure[orUnknown(r.Procedure)]++
		s.ByJurisdiction[orUnknown(r.Jurisdiction)]++
		s.ByFileType[orUnknown(r.FileType)]++
	}

	type pc struct {
		p string
		c int
	}
	var arr []pc
	for k, v := range s.ByProcedure {
		arr = append(arr, pc{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].c != arr[j].c {
			return arr[i].c > arr[j].c
		}
		return arr[i].p < arr[j].p
	})
	for i := 0; i < len(arr) && i < 3; i++ {
		s.TopProcedures = append(s.TopProcedures, arr[i].p)
	}
	return s
}

// LoadAndSummarize reads a manifest and logs its summary.
func LoadAndSummarize(p, defaultBucket string, log logrus.FieldLogger) ([]types.RecordingRequest, Summary, error) {
	log = log.WithFields(logrus.Fields{"component": "dataset", "path": p})
	log.Info("opening manifest")
	reqs, err := Load(p, defaultBucket)
	if err != nil {
		log.WithError(err).Error("manifest load failed")
		return nil, Summary{}, err
	}
	s := Summarize(reqs)
	log.WithFields(logrus.Fields{
		"total_recordings": s.TotalRecordings,
		"procedures":       len(s.ByProcedure),
		"jurisdictions":    len(s.ByJurisdiction),
		"top_procedures":   s.TopProcedures,
	}).Info("manifest summarization complete")
	return reqs, s, nil
}
