// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package artifact persists the generated landing-page bundles.

A bundle is a directory of static files named after its owner, e.g.
"jane-smith-0193b2": the normalized extraction record as resume.json plus a
self-contained index.html shell that loads it. Bundles are disposable
output; the job row stays the source of truth and orphaned directories are
purged on schedule.
*/
package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/resumora/resumora/pkg/slug"
)

// Bundle file names.
const (
	recordFileName = "resume.json"
	shellFileName  = "index.html"
)

// shortIDLength is how much of the job ID lands in the directory name.
const shortIDLength = 6

// indexShell is the static page served next to the record. It renders the
// JSON client-side; real template rendering happens outside this service.
const indexShell = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Resume</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 48rem; padding: 0 1rem; }
    pre { white-space: pre-wrap; word-break: break-word; }
  </style>
</head>
<body>
  <main><pre id="resume">Loading resume...</pre></main>
  <script>
    fetch("resume.json")
      .then(function (response) { return response.json(); })
      .then(function (record) {
        var name = record.personalInfo && record.personalInfo.name;
        if (name) { document.title = name + " - Resume"; }
        document.getElementById("resume").textContent = JSON.stringify(record, null, 2);
      })
      .catch(function () {
        document.getElementById("resume").textContent = "Resume data unavailable.";
      });
  </script>
</body>
</html>
`

// # Store

// Store writes and reaps bundle directories under one root.
type Store struct {
	root   string
	logger *slog.Logger
}

/*
NewStore creates the artifact store, ensuring the root directory exists.
*/
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifact_root_create_failed: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

/*
Check verifies the root is still writable. Used by the readiness probe;
a full disk or yanked mount shows up here before jobs start failing.
*/
func (store *Store) Check() error {
	probe := filepath.Join(store.root, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("artifact_root_unwritable: %w", err)
	}
	return os.Remove(probe)
}

/*
WriteBundle writes the record and its static shell for one finished job.

Description:
  The directory is named slug(name)-shortid, so a rerun of the same job
  overwrites its own bundle instead of stacking duplicates.

Parameters:
  - jobID: Finished job; its short ID anchors the directory name.
  - name: Owner name from the record; empty slugs fall back to "resume".
  - recordJSON: The normalized extraction record, already marshalled.

Returns:
  - string: The bundle directory name, relative to the root.
  - error: Filesystem errors.
*/
func (store *Store) WriteBundle(jobID, name string, recordJSON []byte) (string, error) {
	base := slug.From(name)
	if base == "" {
		base = "resume"
	}
	bundleName := fmt.Sprintf("%s-%s", base, ShortID(jobID))
	bundlePath := filepath.Join(store.root, bundleName)

	if err := os.MkdirAll(bundlePath, 0o755); err != nil {
		return "", fmt.Errorf("artifact_bundle_create_failed: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bundlePath, recordFileName), recordJSON, 0o644); err != nil {
		return "", fmt.Errorf("artifact_record_write_failed: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bundlePath, shellFileName), []byte(indexShell), 0o644); err != nil {
		return "", fmt.Errorf("artifact_shell_write_failed: %w", err)
	}

	store.logger.Info("bundle written",
		slog.String("job_id", jobID),
		slog.String("bundle", bundleName))
	return bundleName, nil
}

/*
Purge removes bundle directories whose job no longer exists.

Description:
  A directory is an orphan when its short ID matches no live job. Only
  orphans modified before the cutoff are removed, leaving a grace window
  for bundles written moments before their job row was read.

Parameters:
  - liveJobIDs: Every job ID currently in the store.
  - olderThan: Modification-time cutoff for removal.

Returns:
  - int64: Number of directories removed.
  - error: Filesystem errors reading the root.
*/
func (store *Store) Purge(liveJobIDs []string, olderThan time.Time) (int64, error) {
	live := make(map[string]struct{}, len(liveJobIDs))
	for _, id := range liveJobIDs {
		live[ShortID(id)] = struct{}{}
	}

	entries, err := os.ReadDir(store.root)
	if err != nil {
		return 0, fmt.Errorf("artifact_root_read_failed: %w", err)
	}

	var removed int64
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := live[bundleShortID(entry.Name())]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(olderThan) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(store.root, entry.Name())); err != nil {
			store.logger.Error("bundle removal failed",
				slog.String("bundle", entry.Name()),
				slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// ShortID derives the directory-name suffix from a job ID.
func ShortID(jobID string) string {
	compact := strings.ReplaceAll(jobID, "-", "")
	if len(compact) > shortIDLength {
		return compact[:shortIDLength]
	}
	return compact
}

// bundleShortID reads the suffix back out of a directory name.
func bundleShortID(bundleName string) string {
	index := strings.LastIndex(bundleName, "-")
	if index < 0 {
		return ""
	}
	return bundleName[index+1:]
}
