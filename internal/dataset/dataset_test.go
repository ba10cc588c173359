package dataset

import (
	"fmt"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"transcript-indexer-go/internal/types"
)

func writeManifest(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	p := filepath.Join(t.TempDir(), "manifest.xlsx")
	require.NoError(t, f.SaveAs(p))
	return p
}

func TestLoad(t *testing.T) {
	p := writeManifest(t, [][]any{
		{"ID", "Procedure", "Jurisdiction", "Description", "Bucket Name", "Bucket Key", "File Type", "File Name"},
		{"rec-1", "Theft", "Surrey", "stolen bike", "uploads", "public/a.mp3", "audio/mpeg", "a.mp3"},
		{"rec-2", "Assault", "Burnaby", "", "", "", "audio/wav", "b.wav"},
		{"", "Theft", "Burnaby", "", "", "public/c.wav"},
	})

	reqs, err := Load(p, "default-bucket")

	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, types.RecordingRequest{
		DynamoID:     "rec-1",
		BucketName:   "uploads",
		BucketKey:    "public/a.mp3",
		Jurisdiction: "Surrey",
		Description:  "stolen bike",
		Procedure:    "Theft",
		FileType:     "audio/mpeg",
		FileName:     "a.mp3",
	}, reqs[0])

	assert.NotEmpty(t, reqs[1].DynamoID)
	assert.Equal(t, "default-bucket", reqs[1].BucketName)
	assert.Equal(t, "c.wav", reqs[1].FileName)
	assert.Equal(t, "audio/wav", reqs[1].FileType)
}

func TestLoad_NoDataRows(t *testing.T) {
	p := writeManifest(t, [][]any{{"ID", "Bucket Key"}})

	_, err := Load(p, "b")

	assert.ErrorIs(t, err, ErrNoRows)
}

func TestLoad_NoKeyColumn(t *testing.T) {
	p := writeManifest(t, [][]any{{"ID", "Procedure"}, {"1", "Theft"}})

	_, err := Load(p, "b")

	assert.ErrorContains(t, err, "no object key column")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), "b")

	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]types.RecordingRequest{
		{Procedure: "Theft", Jurisdiction: "Surrey", FileType: "audio/mpeg"},
		{Procedure: "Theft", Jurisdiction: "Burnaby", FileType: "audio/wav"},
		{Procedure: "Assault", Jurisdiction: "Surrey"},
		{Procedure: "Fraud", Jurisdiction: "Surrey", FileType: "audio/wav"},
		{Jurisdiction: "Surrey", FileType: "audio/wav"},
	})

	assert.Equal(t, 5, s.TotalRecordings)
	assert.Equal(t, map[string]int{"Theft": 2, "Assault": 1, "Fraud": 1, "unknown": 1}, s.ByProcedure)
	assert.Equal(t, map[string]int{"Surrey": 4, "Burnaby": 1}, s.ByJurisdiction)
	assert.Equal(t, map[string]int{"audio/mpeg": 1, "audio/wav": 3, "unknown": 1}, s.ByFileType)
	assert.Equal(t, []string{"Theft", "Assault", "Fraud"}, s.TopProcedures)
}

func TestLoadAndSummarize(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	p := writeManifest(t, [][]any{
		{"Dynamo Id", "Bucket Key", "Procedure"},
		{"r1", "k1.mp3", "Theft"},
	})

	reqs, s, err := LoadAndSummarize(p, "b", log)

	require.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, 1, s.TotalRecordings)
	assert.Equal(t, "audio/mpeg", reqs[0].FileType)
	assert.Equal(t, "manifest summarization complete", hook.LastEntry().Message)
}
