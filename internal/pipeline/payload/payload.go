// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package payload stores submitted resume text and serves hydration reads.

PostgreSQL is authoritative; Redis fronts it as a read-through cache so the
queue engine's hydration of a claimed job rarely touches the primary store.
Cache entries are volatile: every entry carries a TTL and oversized texts
are never cached at all.
*/
package payload

import "time"

// # Domain Entities

// Payload is one submitted resume text, referenced by jobs through Ref.
type Payload struct {
	// Ref uniquely identifies the payload (UUIDv7); jobs carry it as
	// their payload reference.
	Ref string `json:"ref"`
	// PrincipalID is the submitting owner.
	PrincipalID string `json:"-"`
	// Text is the cleaned resume text, UTF-8, layout-free.
	Text string `json:"-"`
	// ByteSize is len(Text), checked against the configured cap.
	ByteSize int `json:"byteSize"`
	// CreatedAt is the submission timestamp.
	CreatedAt time.Time `json:"createdAt"`
}
