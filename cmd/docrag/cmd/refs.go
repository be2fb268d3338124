package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/docrag/internal/errors"
)

const minHashPrefix = 6

// docRef identifies a cached document.
type docRef struct {
	Hash string
	Name string
}

// resolveDocument maps a hash, hash prefix or document name to a cached
// document. The catalog answers first; the cache manifests are the fallback
// when the catalog is missing or was rebuilt.
func (a *app) resolveDocument(ctx context.Context, ref string) (docRef, error) {
	if a.catalog != nil {
		rec, err := a.catalog.Resolve(ctx, ref)
		if err == nil {
			return docRef{Hash: rec.Hash, Name: rec.Name}, nil
		}
		if !errors.HasCode(err, errors.ErrCodeDocumentNotFound) {
			return docRef{}, err
		}
	}
	return a.resolveFromManifests(ref)
}

func (a *app) resolveFromManifests(ref string) (docRef, error) {
	manifests, err := a.store.List()
	if err != nil {
		return docRef{}, err
	}

	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	var matches []docRef
	seen := make(map[string]bool)
	for _, m := range manifests {
		byHash := len(lower) >= minHashPrefix && strings.HasPrefix(m.Hash, lower)
		if (byHash || m.Name == ref) && !seen[m.Hash] {
			seen[m.Hash] = true
			matches = append(matches, docRef{Hash: m.Hash, Name: m.Name})
		}
	}

	switch len(matches) {
	case 0:
		return docRef{}, errors.New(errors.ErrCodeDocumentNotFound, fmt.Sprintf("no document matches %q", ref), nil).
			WithSuggestion("Run 'docrag ls' to see cached documents.")
	case 1:
		return matches[0], nil
	default:
		return docRef{}, errors.ValidationError(
			fmt.Sprintf("%q matches %d documents", ref, len(matches)), nil).
			WithSuggestion("Use a longer prefix or the full hash.")
	}
}
