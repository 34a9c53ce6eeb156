package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"chat-sync/internal/cache"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

// maxBatch caps how many profiles a single lookup resolves, matching the
// managed backend's whereIn limit.
const maxBatch = 10

const profileTTL = 5 * time.Minute

// Directory resolves public user profiles, with a cache in front of the
// store. The cache is read-through per profile id; email lookup always hits
// the store because emails are mutable lookup keys.
type Directory struct {
	store store.Store
	cache cache.Cache
}

// New builds a Directory. A nil cache disables caching.
func New(st store.Store, c cache.Cache) *Directory {
	return &Directory{store: st, cache: c}
}

// FindByEmail resolves a public profile by its lowercase email key.
// Returns store.ErrNotFound when no user matches.
func (d *Directory) FindByEmail(ctx context.Context, emailLower string) (models.PublicProfile, error) {
	docs, err := d.store.GetAll(ctx, store.Query{
		Path:       models.CollectionPublic,
		WhereEqual: &store.Where{Field: "emailLower", Value: emailLower},
	})
	if err != nil {
		return models.PublicProfile{}, err
	}
	if len(docs) == 0 {
		return models.PublicProfile{}, store.ErrNotFound
	}
	profile := models.MapPublicProfile(docs[0].ID, docs[0].Fields)
	d.cachePut(ctx, profile)
	return profile, nil
}

// Profiles resolves public profiles for up to maxBatch ids. Unknown ids are
// skipped rather than failing the whole lookup.
func (d *Directory) Profiles(ctx context.Context, ids []string) ([]models.PublicProfile, error) {
	if len(ids) > maxBatch {
		ids = ids[:maxBatch]
	}
	out := make([]models.PublicProfile, 0, len(ids))
	for _, id := range ids {
		if profile, ok := d.cacheGet(ctx, id); ok {
			out = append(out, profile)
			continue
		}
		doc, err := d.store.Get(ctx, models.CollectionPublic, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profile := models.MapPublicProfile(doc.ID, doc.Fields)
		d.cachePut(ctx, profile)
		out = append(out, profile)
	}
	return out, nil
}

// Invalidate drops cached profiles, e.g. after a profile upsert.
func (d *Directory) Invalidate(ctx context.Context, ids ...string) {
	if d.cache == nil {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	if err := d.cache.Del(ctx, keys...); err != nil {
		log.Printf("profile cache invalidate failed: %v", err)
	}
}

func (d *Directory) cacheGet(ctx context.Context, id string) (models.PublicProfile, bool) {
	if d.cache == nil {
		return models.PublicProfile{}, false
	}
	raw, err := d.cache.Get(ctx, profileKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("profile cache get failed: %v", err)
		}
		return models.PublicProfile{}, false
	}
	var profile models.PublicProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return models.PublicProfile{}, false
	}
	return profile, true
}

func (d *Directory) cachePut(ctx context.Context, profile models.PublicProfile) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, profileKey(profile.ID), string(raw), profileTTL); err != nil {
		log.Printf("profile cache set failed: %v", err)
	}
}

func profileKey(id string) string { return "profile:" + id }
