package dataset

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"transcript-indexer-go/internal/types"
)

var ErrNoRows = errors.New("manifest has no data rows")

// column indexes detected from the header row, -1 when absent
type columns struct {
	id, procedure, jurisdiction, description, bucket, key, fileType, fileName int
}

// detectColumns maps manifest headers to recording fields by header heuristics.
func detectColumns(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1}
	set := func(idx *int, i int) {
		if *idx == -1 {
			*idx = i
		}
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "key") || strings.Contains(l, "path"):
			set(&c.key, i)
		case strings.Contains(l, "bucket"):
			set(&c.bucket, i)
		case strings.Contains(l, "type") || strings.Contains(l, "mime"):
			set(&c.fileType, i)
		case strings.Contains(l, "name"):
			set(&c.fileName, i)
		case strings.Contains(l, "procedure") || strings.Contains(l, "sop"):
			set(&c.procedure, i)
		case strings.Contains(l, "jurisdiction"):
			set(&c.jurisdiction, i)
		case strings.Contains(l, "desc"):
			set(&c.description, i)
		case l == "id" || strings.Contains(l, "dynamo") || strings.HasSuffix(l, " id"):
			set(&c.id, i)
		}
	}
	return c
}

// contentTypes guesses a content type from a file extension when the manifest has none.
var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".mp4":  "audio/mp4a-latm",
	".m4a":  "audio/mp4a-latm",
}

// Load reads recording requests from the first sheet of an xlsx manifest.
// Rows without an object key are skipped. Missing ids are generated and a
// missing bucket is filled with defaultBucket.
func Load(p, defaultBucket string) ([]types.RecordingRequest, error) {
	f, err := excelize.OpenFile(p)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, ErrNoRows
	}

	c := detectColumns(rows[0])
	if c.key == -1 {
		return nil, fmt.Errorf("no object key column in header %q", rows[0])
	}

	var out []types.RecordingRequest
	for _, r := range rows[1:] {
		cell := func(idx int) string {
			if idx >= 0 && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}
		req := types.RecordingRequest{
			DynamoID:     cell(c.id),
			BucketName:   cell(c.bucket),
			BucketKey:    cell(c.key),
			Jurisdiction: cell(c.jurisdiction),
			Description:  cell(c.description),
			Procedure:    cell(c.procedure),
			FileType:     cell(c.fileType),
			FileName:     cell(c.fileName),
		}
		if req.BucketKey == "" {
			continue
		}
		if req.DynamoID == "" {
			req.DynamoID = uuid.NewString()
		}
		if req.BucketName == "" {
			req.BucketName = defaultBucket
		}
		if req.FileName == "" {
			req.FileName = path.Base(req.BucketKey)
		}
		if req.FileType == "" {
			req.FileType = contentTypes[strings.ToLower(path.Ext(req.FileName))]
		}
		out = append(out, req)
	}
	return out, nil
}
