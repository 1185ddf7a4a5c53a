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

// Package models defines the data structures shared across the extraction service.
package models

import (
	"strings"
	"time"
)

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Matches reports whether the address equals addr, ignoring case and
// surrounding whitespace. Empty addresses never match.
func (a EmailAddress) Matches(addr string) bool {
	x := strings.TrimSpace(a.Address)
	y := strings.TrimSpace(addr)
	return x != "" && y != "" && strings.EqualFold(x, y)
}

// String renders the address as "Name <address>".
func (a EmailAddress) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// EmailEvent is the queue representation of a mailbox message, as produced by
// the upstream ingestion and normalisation services.
//
// This struct's JSON serialisation MUST match the shared/schemas/email_event.json
// contract used by the ingestion service.
type EmailEvent struct {
	MessageID   string         `json:"message_id"`
	UserID      string         `json:"user_id"`
	TenantID    string         `json:"tenant_id"`
	TenantAlias string         `json:"tenant_alias"`
	ReceivedAt  string         `json:"received_at,omitempty"`
	From        EmailAddress   `json:"from"`
	To          []EmailAddress `json:"to"`
	Cc          []EmailAddress `json:"cc,omitempty"`
	Subject     string         `json:"subject"`
	Body        EmailBody      `json:"body"`
}

// EmailBody represents the message body content.
type EmailBody struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// NormalizedEmail is the plain-text email handed to the extraction pipeline.
// It is immutable once produced; the pipeline only reads it.
type NormalizedEmail struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	Sender         EmailAddress   `json:"sender"`
	To             []EmailAddress `json:"to"`
	Cc             []EmailAddress `json:"cc"`
	ReceivedAt     time.Time      `json:"received_at"`
}

// Identity is the user on whose behalf actions are extracted.
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Team  string `json:"team" yaml:"team"`
}

// LocalPart returns the part of the identity's address before '@'.
func (id Identity) LocalPart() string {
	if i := strings.IndexByte(id.Email, '@'); i > 0 {
		return id.Email[:i]
	}
	return ""
}
