package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"placecraft/internal/config"
	"placecraft/internal/logger"
	"placecraft/internal/parser"
	"placecraft/internal/profile"
	"placecraft/internal/store"
)

// Store is the part of store.Store ingestion writes through.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertPlacement(ctx context.Context, p store.PlacementInput) error
	RemoveStalePlacements(ctx context.Context, layer string, currentSourceFiles []string) (int64, error)
	GetLayerHashes(ctx context.Context, layer string) (map[string]string, error)
}

type Result struct {
	PlacementsUpserted int
	PlacementsRemoved  int
	FilesSkipped       int
	Errors             []error
}

type Options struct {
	Full bool
}

// Load parses every placement document under the configured layers and
// builds the profile. Per-file problems are collected, not fatal.
func Load(cfg *config.ProjectConfig, catalog *config.Catalog) (*profile.Profile, []error) {
	prof := profile.New()
	var errs []error

	for _, layer := range cfg.Layers {
		files, err := walkMarkdownFiles(cfg, layer.Paths)
		if err != nil {
			errs = append(errs, fmt.Errorf("walking files for layer %s: %w", layer.Name, err))
			continue
		}
		for _, path := range files {
			doc, err := parser.ParseFile(path)
			if err != nil {
				if skippable(err) {
					continue
				}
				errs = append(errs, fmt.Errorf("parsing %s: %w", path, err))
				continue
			}
			if doc.Placement == nil {
				continue
			}
			p, err := Build(doc, catalog)
			if err != nil {
				errs = append(errs, fmt.Errorf("building %s: %w", path, err))
				continue
			}
			if err := prof.Add(p); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
		}
	}

	return prof, errs
}

// Run syncs placement definitions into db. Unless options.Full is set, files
// whose hash matches the stored one are not rewritten.
func Run(ctx context.Context, cfg *config.ProjectConfig, catalog *config.Catalog, db Store, options Options) (*Result, error) {
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	result := &Result{}
	layerFiles := make(map[string][]string)
	seen := make(map[string]string)

	for _, layer := range cfg.Layers {
		var existingHashes map[string]string
		if !options.Full {
			var err error
			existingHashes, err = db.GetLayerHashes(ctx, layer.Name)
			if err != nil {
				return nil, fmt.Errorf("get layer hashes for %s: %w", layer.Name, err)
			}
		}

		files, err := walkMarkdownFiles(cfg, layer.Paths)
		if err != nil {
			return nil, fmt.Errorf("walking files for layer %s: %w", layer.Name, err)
		}
		layerFiles[layer.Name] = files

		for _, path := range files {
			hash, err := computeHash(path)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("hashing %s: %w", path, err))
				continue
			}
			doc, err := parser.ParseFile(path)
			if err != nil {
				if skippable(err) {
					result.FilesSkipped++
					continue
				}
				result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, err))
				continue
			}
			if doc.Placement == nil {
				result.FilesSkipped++
				continue
			}

			p, err := Build(doc, catalog)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("building %s: %w", path, err))
				continue
			}

			// Unchanged files still claim their name, as they do in Load.
			key := store.Normalize(p.Name())
			if other, dup := seen[key]; dup {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w: %s also defined in %s", path, profile.ErrDuplicatePlacement, p.Name(), other))
				continue
			}
			seen[key] = path

			if !options.Full {
				if existing, ok := existingHashes[path]; ok && existing == hash {
					logger.Log.WithField("file", path).Debug("unchanged, skipping")
					result.FilesSkipped++
					continue
				}
			}

			definition, err := json.Marshal(doc.Placement)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("encoding %s: %w", path, err))
				continue
			}
			items := make([]string, 0, len(p.Items()))
			for _, item := range p.Items() {
				items = append(items, item.Name())
			}

			input := store.PlacementInput{
				Name:       p.Name(),
				Layer:      layer.Name,
				SourceFile: path,
				SourceHash: hash,
				Items:      items,
				Definition: definition,
				Body:       doc.Body,
			}
			if err := db.UpsertPlacement(ctx, input); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("upserting %s: %w", path, err))
				continue
			}
			result.PlacementsUpserted++
		}
	}

	for _, layer := range cfg.Layers {
		deleted, err := db.RemoveStalePlacements(ctx, layer.Name, layerFiles[layer.Name])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("removing stale placements for %s: %w", layer.Name, err))
			continue
		}
		result.PlacementsRemoved += int(deleted)
	}

	return result, nil
}

// skippable reports parse errors that mean "not a content document".
func skippable(err error) bool {
	return errors.Is(err, parser.ErrNoFrontmatter) || errors.Is(err, parser.ErrMissingType)
}

func walkMarkdownFiles(cfg *config.ProjectConfig, roots []string) ([]string, error) {
	var prefixes, patterns []string
	for _, entry := range cfg.Exclude {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.ContainsAny(entry, "*?[") && !strings.ContainsRune(entry, '/'):
			patterns = append(patterns, entry)
		default:
			prefixes = append(prefixes, filepath.Clean(cfg.Resolve(entry)))
		}
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(cfg.Resolve(root))
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if isExcluded(path, prefixes, patterns) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !parser.IsMarkdown(d.Name()) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// isExcluded matches path against exclude prefixes, and its base name against
// glob patterns such as "*.draft.md".
func isExcluded(path string, prefixes, patterns []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range prefixes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	base := filepath.Base(clean)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func computeHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
