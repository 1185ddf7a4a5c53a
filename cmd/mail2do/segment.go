// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/segment"
)

func init() {
	var (
		file     string
		maxHints int
	)
	segmentCmd := &cobra.Command{
		Use:   "segment",
		Short: "Print the segments, mentions and deadline hints of a body",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(os.Stdin)
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open body file: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runSegment(in, os.Stdout, maxHints)
		},
	}
	segmentCmd.Flags().StringVarP(&file, "file", "f", "-", "Body text file, - for stdin")
	segmentCmd.Flags().IntVar(&maxHints, "max-hints", 5, "Deadline hints kept per segment")
	rootCmd.AddCommand(segmentCmd)
}

type segmentReport struct {
	Mentions []models.Mention `json:"mentions"`
	Segments []models.Segment `json:"segments"`
}

func runSegment(r io.Reader, w io.Writer, maxHints int) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	doc := segment.NewSegmenter(segment.NewHintExtractor(maxHints)).Split(string(body))

	report := segmentReport{Mentions: doc.Mentions, Segments: doc.Segments}
	if report.Mentions == nil {
		report.Mentions = []models.Mention{}
	}
	if report.Segments == nil {
		report.Segments = []models.Segment{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
