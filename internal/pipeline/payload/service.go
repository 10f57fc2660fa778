// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package payload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/pkg/uuidv7"
)

// # Service

// Service combines the authoritative store with the volatile cache.
type Service struct {
	store    Store
	cache    *Cache
	logger   *slog.Logger
	maxBytes int
}

// NewService constructs a payload [Service] with necessary dependencies.
func NewService(store Store, cache *Cache, logger *slog.Logger, maxBytes int) *Service {
	return &Service{store: store, cache: cache, logger: logger, maxBytes: maxBytes}
}

/*
Put stores submitted resume text and returns the new payload.

Description: Enforces the byte cap, persists to the authoritative store,
then warms the cache best-effort; a cache write failure never fails the
submission.

Parameters:
  - context: context.Context
  - principalID: string
  - text: string

Returns:
  - *Payload: Stored payload with its fresh reference
  - err: apperr.TooLarge or storage failures
*/
func (service *Service) Put(context context.Context, principalID, text string) (*Payload, error) {
	if len(text) > service.maxBytes {
		return nil, apperr.TooLarge(fmt.Sprintf("Document exceeds the %d byte limit.", service.maxBytes))
	}

	stored := &Payload{
		Ref:         uuidv7.New(),
		PrincipalID: principalID,
		Text:        text,
		ByteSize:    len(text),
		CreatedAt:   time.Now(),
	}

	if err := service.store.Save(context, stored); err != nil {
		return nil, fmt.Errorf("payload_service_put_failed: %w", err)
	}

	if err := service.cache.Set(context, stored.Ref, text); err != nil {
		service.logger.Warn("payload cache warm failed", "ref", stored.Ref, "error", err)
	}

	return stored, nil
}

/*
Fetch returns the text for one payload reference.

Description: Cache first; on a miss the authoritative store is read and the
cache backfilled best-effort.

Parameters:
  - context: context.Context
  - ref: string

Returns:
  - string: Cleaned resume text
  - err: apperr.NotFound or storage failures
*/
func (service *Service) Fetch(context context.Context, ref string) (string, error) {
	if text, ok := service.cache.Get(context, ref); ok {
		return text, nil
	}

	text, err := service.store.FetchText(context, ref)
	if err != nil {
		return "", err
	}

	if err := service.cache.Set(context, ref, text); err != nil {
		service.logger.Warn("payload cache backfill failed", "ref", ref, "error", err)
	}

	return text, nil
}

/*
PurgeCache drops every cached payload entry.

Parameters:
  - context: context.Context

Returns:
  - int64: Entries removed
  - err: Connectivity errors
*/
func (service *Service) PurgeCache(context context.Context) (int64, error) {
	return service.cache.Purge(context)
}

/*
DeleteOrphans removes stored payloads no live job references.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - err: Cleanup failures
*/
func (service *Service) DeleteOrphans(context context.Context, olderThan time.Time) (int64, error) {
	return service.store.DeleteOrphans(context, olderThan)
}
