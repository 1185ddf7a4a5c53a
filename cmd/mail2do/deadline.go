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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/deadline"
	"github.com/bcem/mail2do/internal/inbox"
	"github.com/bcem/mail2do/internal/llm"
)

func init() {
	var (
		received    string
		useFallback bool
	)
	deadlineCmd := &cobra.Command{
		Use:   "deadline PHRASE",
		Short: "Resolve a due phrase to an absolute deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			x := cfg.Extraction

			var fallback deadline.Fallback
			if useFallback {
				if err := cfg.Validate(); err != nil {
					return err
				}
				completer, err := llm.NewLangChainCompleter(cmd.Context(), cfg.Model)
				if err != nil {
					return err
				}
				client := llm.NewClient(completer, cfg.Model, slog.Default())
				fallback = llm.NewDeadlineFallback(client, x.ReferenceLocation(), x.DefaultDueHour, x.DefaultDueMinute)
			}
			return runDeadline(cmd.Context(), os.Stdout, x, fallback, args[0], received)
		},
	}
	deadlineCmd.Flags().StringVarP(&received, "received", "r", "", "Reference receive time (RFC 3339; defaults to now)")
	deadlineCmd.Flags().BoolVar(&useFallback, "fallback", false, "Ask the model when no rule matches")
	rootCmd.AddCommand(deadlineCmd)
}

type deadlineReport struct {
	Phrase   string  `json:"phrase"`
	Rule     string  `json:"rule"`
	DueLocal *string `json:"due_local"`
	DueUTC   *string `json:"due_utc"`
}

func runDeadline(ctx context.Context, w io.Writer, x config.ExtractionConfig, fallback deadline.Fallback, phrase, received string) error {
	ref, err := inbox.ParseTime(received)
	if err != nil {
		return fmt.Errorf("--received: %w", err)
	}
	if ref.IsZero() {
		ref = time.Now()
	}

	r := deadline.NewResolver(x.ReferenceLocation(), x.DefaultDueHour, x.DefaultDueMinute, fallback, slog.Default())
	res := r.Resolve(ctx, &phrase, ref)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(deadlineReport{
		Phrase:   phrase,
		Rule:     string(res.Rule),
		DueLocal: res.Local,
		DueUTC:   res.UTC,
	})
}
