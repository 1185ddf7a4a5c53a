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

// Package inbox turns upstream email records into the plain-text
// NormalizedEmail the pipeline consumes.
package inbox

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/bcem/mail2do/internal/models"
)

// batchFile is the export format: {"values":[{"recordId":..,"data":{..}}]}.
type batchFile struct {
	Values []batchRecord `json:"values"`
}

type batchRecord struct {
	RecordID string       `json:"recordId"`
	Data     *batchFields `json:"data"`
}

type batchFields struct {
	EmailID     string   `json:"email_id"`
	Subject     string   `json:"subject"`
	EmailBody   string   `json:"email_body"`
	HTMLBody    string   `json:"html_body"`
	FromAddress string   `json:"from_address"`
	FromName    string   `json:"from_name"`
	ToAddresses []string `json:"to_addresses"`
	ToNames     []string `json:"to_names"`
	CcAddresses []string `json:"cc_addresses"`
	CcNames     []string `json:"cc_names"`
	Date        string   `json:"date"`
	ThreadID    string   `json:"thread_id"`
}

// LoadFile reads a batch export from disk.
func LoadFile(path string, logger *slog.Logger) ([]models.NormalizedEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load decodes a batch export. Records without data, subject, body or
// sender are skipped with a warning.
func Load(r io.Reader, logger *slog.Logger) ([]models.NormalizedEmail, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var batch batchFile
	if err := json.NewDecoder(r).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode batch file: %w", err)
	}

	emails := make([]models.NormalizedEmail, 0, len(batch.Values))
	for i, rec := range batch.Values {
		id := rec.RecordID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if rec.Data == nil {
			logger.Warn("skipping record without data", "record_id", id)
			continue
		}
		if missing := rec.Data.missing(); len(missing) > 0 {
			logger.Warn("skipping record with missing fields", "record_id", id, "missing", missing)
			continue
		}
		emails = append(emails, rec.normalize(logger))
	}
	return emails, nil
}

func (d *batchFields) missing() []string {
	var out []string
	if strings.TrimSpace(d.Subject) == "" {
		out = append(out, "subject")
	}
	if strings.TrimSpace(d.EmailBody) == "" && strings.TrimSpace(d.HTMLBody) == "" {
		out = append(out, "email_body")
	}
	if strings.TrimSpace(d.FromAddress) == "" {
		out = append(out, "from_address")
	}
	return out
}

func (r batchRecord) normalize(logger *slog.Logger) models.NormalizedEmail {
	d := r.Data
	id := d.EmailID
	if id == "" {
		id = r.RecordID
	}
	received, err := ParseTime(d.Date)
	if err != nil {
		logger.Warn("unparseable received date", "email_id", id, "date", d.Date, "error", err)
	}
	return models.NormalizedEmail{
		ID:             id,
		ConversationID: d.ThreadID,
		Subject:        strings.TrimSpace(d.Subject),
		Body:           mergeBodies(d.EmailBody, d.HTMLBody),
		Sender:         models.EmailAddress{Address: strings.TrimSpace(d.FromAddress), Name: strings.TrimSpace(d.FromName)},
		To:             zipAddresses(d.ToAddresses, d.ToNames),
		Cc:             zipAddresses(d.CcAddresses, d.CcNames),
		ReceivedAt:     received,
	}
}

// zipAddresses pairs addresses with names up to the longer of the two lists,
// dropping pairs where both are blank.
func zipAddresses(addrs, names []string) []models.EmailAddress {
	n := max(len(addrs), len(names))
	out := make([]models.EmailAddress, 0, n)
	for i := 0; i < n; i++ {
		var a models.EmailAddress
		if i < len(addrs) {
			a.Address = strings.TrimSpace(addrs[i])
		}
		if i < len(names) {
			a.Name = strings.TrimSpace(names[i])
		}
		if a.Address == "" && a.Name == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FromEvent converts a queue event. The mailbox owner is event.UserID.
func FromEvent(event *models.EmailEvent) (models.NormalizedEmail, error) {
	if event == nil {
		return models.NormalizedEmail{}, fmt.Errorf("convert email event: nil event")
	}
	received, err := ParseTime(event.ReceivedAt)
	if err != nil {
		return models.NormalizedEmail{}, fmt.Errorf("convert email event %s: %w", event.MessageID, err)
	}

	body := event.Body.Content
	if strings.EqualFold(event.Body.ContentType, "html") {
		body = HTMLToText(body)
	}

	return models.NormalizedEmail{
		ID:         event.MessageID,
		Subject:    event.Subject,
		Body:       body,
		Sender:     event.From,
		To:         append([]models.EmailAddress(nil), event.To...),
		Cc:         append([]models.EmailAddress(nil), event.Cc...),
		ReceivedAt: received,
	}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes seen in exports. A blank value
// yields the zero time; layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<script.*?</script>|<style.*?</style>`)
	lineBreakRe   = regexp.MustCompile(`(?is)<br\s*/?>|</p>|</div>`)
	listItemRe    = regexp.MustCompile(`(?is)<li[^>]*>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRunRe    = regexp.MustCompile(`[ \t\x{00A0}]+`)
	blankRunRe    = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// HTMLToText flattens an HTML body into text, keeping paragraph and line
// breaks so that segmentation still sees them.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	s = scriptStyleRe.ReplaceAllString(s, " ")
	s = lineBreakRe.ReplaceAllString(s, "\n")
	s = listItemRe.ReplaceAllString(s, "\n- ")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRunRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(ln)
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// mergeBodies appends the text of the HTML body to the plain body, dropping
// lines already present.
func mergeBodies(text, htmlBody string) string {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(htmlBody) == "" {
		return text
	}
	h := HTMLToText(htmlBody)
	if h == "" {
		return text
	}
	if text == "" {
		return h
	}

	seen := make(map[string]struct{})
	for _, ln := range strings.Split(text, "\n") {
		if k := strings.TrimSpace(ln); k != "" {
			seen[k] = struct{}{}
		}
	}
	var extra []string
	for _, ln := range strings.Split(h, "\n") {
		k := strings.TrimSpace(ln)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		extra = append(extra, ln)
	}
	if len(extra) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(extra, "\n")
}

// ToEvent builds the queue event for email as delivered to owner.
func ToEvent(email models.NormalizedEmail, owner string) *models.EmailEvent {
	event := &models.EmailEvent{
		MessageID: email.ID,
		UserID:    strings.ToLower(strings.TrimSpace(owner)),
		From:      email.Sender,
		To:        append([]models.EmailAddress(nil), email.To...),
		Cc:        append([]models.EmailAddress(nil), email.Cc...),
		Subject:   email.Subject,
		Body:      models.EmailBody{ContentType: "text", Content: email.Body},
	}
	if !email.ReceivedAt.IsZero() {
		event.ReceivedAt = email.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return event
}
