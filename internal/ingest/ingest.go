// Package ingest syncs directories of toolpath documents into an archive.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

// Archive is the part of store.Store a sync needs.
type Archive interface {
	PutDocument(ctx context.Context, doc document.Document) (*store.DocumentRecord, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error)
}

type Result struct {
	Stored  []string
	Skipped int
	Removed []string
	Errors  []error
}

type Options struct {
	// Full stores every document even when its digest is unchanged.
	Full bool
	// Prune deletes archived documents that no scanned file holds.
	Prune   bool
	Exclude []string
}

// Run archives every *.json document under roots. Files that fail to parse
// or validate are reported in Result.Errors and do not stop the sync.
func Run(ctx context.Context, db Archive, roots []string, options Options) (*Result, error) {
	existing, err := db.ListDocuments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing archived documents: %w", err)
	}
	digests := make(map[string]string, len(existing))
	for _, rec := range existing {
		digests[rec.ID] = rec.Digest
	}

	files, err := walkDocumentFiles(roots, options.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walking files: %w", err)
	}

	result := &Result{}
	seen := make(map[string]string)
	for _, path := range files {
		doc, err := document.ParseFile(path)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if first, dup := seen[doc.ID()]; dup {
			result.Errors = append(result.Errors, fmt.Errorf("%s: document %q already read from %s", path, doc.ID(), first))
			continue
		}
		seen[doc.ID()] = path

		if !options.Full {
			prep, err := store.Prepare(doc)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("checking %s: %w", path, err))
				continue
			}
			if digests[doc.ID()] == prep.Record.Digest {
				result.Skipped++
				continue
			}
		}

		if _, err := db.PutDocument(ctx, doc); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing %s: %w", path, err))
			continue
		}
		result.Stored = append(result.Stored, doc.ID())
	}

	if options.Prune {
		for _, rec := range existing {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			deleted, err := db.DeleteDocument(ctx, rec.ID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("removing %s: %w", rec.ID, err))
				continue
			}
			if deleted {
				result.Removed = append(result.Removed, rec.ID)
			}
		}
	}

	return result, nil
}

func walkDocumentFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
				return nil
			}
			if isExcluded(path, excluded) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return files, nil
}

func isExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
