// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package payload

import (
	"context"
	"time"
)

// # Payload Data Access

// Store defines the authoritative data access contract for payloads.
type Store interface {

	/*
		Save persists a new payload row.

		Parameters:
		  - context: context.Context
		  - payload: *Payload

		Returns:
		  - error: Persistence failures
	*/
	Save(context context.Context, payload *Payload) error

	/*
		FetchText returns the stored text for one payload reference.

		Parameters:
		  - context: context.Context
		  - ref: string

		Returns:
		  - string: Cleaned resume text
		  - error: apperr.NotFound or database retrieval failures
	*/
	FetchText(context context.Context, ref string) (string, error)

	/*
		DeleteOrphans removes payload rows no live job references.

		Description: A payload between Save and Enqueue briefly has no
		referencing job, so only rows older than the cutoff are eligible.

		Parameters:
		  - context: context.Context
		  - olderThan: time.Time

		Returns:
		  - int64: Rows removed
		  - error: Cleanup failures
	*/
	DeleteOrphans(context context.Context, olderThan time.Time) (int64, error)
}
