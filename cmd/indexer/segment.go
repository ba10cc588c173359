package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transcript-indexer-go/internal/segmenter"
)

type segmentOutput struct {
	Paragraphs    int      `json:"paragraphs"`
	Chunks        int      `json:"chunks"`
	ChunkBytes    []int    `json:"chunk_bytes"`
	Substitutions int      `json:"substitutions"`
	Transcript    string   `json:"transcript"`
	ChunkTexts    []string `json:"chunk_texts,omitempty"`
}

func newSegmentCommand() *cobra.Command {
	var (
		vocabulary map[string]string
		asJSON     bool
		showChunks bool
	)
	cmd := &cobra.Command{
		Use:   "segment <result.json>",
		Short: "Segment a saved transcription result document",
		Long: `Segment a transcription result document into speaker paragraphs and NLP chunks.

Examples:
  indexer segment asrOutput.json
  indexer segment asrOutput.json --vocabulary rcmp=RCMP,ems=EMS --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read result document: %w", err)
			}
			in, err := segmenter.Parse(data, vocabulary)
			if err != nil {
				return err
			}
			res, err := segmenter.Segment(in)
			if err != nil {
				return err
			}

			out := segmentOutput{
				Paragraphs:    len(res.Spoken()),
				Chunks:        len(res.Chunks),
				Substitutions: res.Substitutions,
				Transcript:    res.Transcript(),
			}
			for _, c := range res.Chunks {
				out.ChunkBytes = append(out.ChunkBytes, len(c))
			}
			if showChunks {
				out.ChunkTexts = res.Chunks
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(w, out.Transcript)
			fmt.Fprintf(w, "\nparagraphs: %d  chunks: %d  substitutions: %d\n", out.Paragraphs, out.Chunks, out.Substitutions)
			for i, n := range out.ChunkBytes {
				fmt.Fprintf(w, "  chunk %d: %d bytes\n", i, n)
				if showChunks {
					fmt.Fprintf(w, "    %s\n", out.ChunkTexts[i])
				}
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&vocabulary, "vocabulary", nil, "Lower-case word replacements, e.g. rcmp=RCMP")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Include chunk text")
	return cmd
}
