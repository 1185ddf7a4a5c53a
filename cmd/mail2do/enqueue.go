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
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bcem/mail2do/internal/inbox"
	"github.com/bcem/mail2do/internal/queue"
)

func init() {
	var file, user string
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Push a batch export onto the emails queue for the service workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			emails, err := inbox.LoadFile(file, slog.Default())
			if err != nil {
				return err
			}
			rdb, err := redisClient(cfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			publisher := queue.NewPublisher(rdb, cfg.EmailsQueue)
			for _, e := range emails {
				if err := publisher.PublishEmailEvent(cmd.Context(), inbox.ToEvent(e, user)); err != nil {
					return err
				}
			}
			slog.Info("batch enqueued", "emails", len(emails), "queue", cfg.EmailsQueue)
			return nil
		},
	}
	enqueueCmd.Flags().StringVarP(&file, "file", "f", "", "Batch export file (required)")
	enqueueCmd.Flags().StringVarP(&user, "user", "u", "", "Mailbox owner e-mail (required)")
	_ = enqueueCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(enqueueCmd)
}
