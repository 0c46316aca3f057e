package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// Normalize is the lookup key for entity names and aliases.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "the ")
	return strings.TrimSpace(n)
}

// Resolution maps candidate names onto canonical entities.
type Resolution struct {
	byName map[string]uuid.UUID
	lookup map[string]uuid.UUID
	seen   map[uuid.UUID]struct{}
	order  []uuid.UUID
}

func newResolution() *Resolution {
	return &Resolution{
		byName: make(map[string]uuid.UUID),
		lookup: make(map[string]uuid.UUID),
		seen:   make(map[uuid.UUID]struct{}),
	}
}

func (r *Resolution) add(name string, id uuid.UUID) {
	if _, ok := r.seen[id]; !ok {
		r.seen[id] = struct{}{}
		r.order = append(r.order, id)
	}
	r.byName[name] = id
	r.lookup[Normalize(name)] = id
}

// IDs returns a copy of the candidate name to entity id map.
func (r *Resolution) IDs() map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out
}

// EntityIDs returns each resolved entity once, in first-resolved order.
func (r *Resolution) EntityIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), r.order...)
}

// Lookup finds the entity a name resolved to, by exact candidate name first
// and then by normalized form.
func (r *Resolution) Lookup(name string) (uuid.UUID, bool) {
	if id, ok := r.byName[name]; ok {
		return id, true
	}
	id, ok := r.lookup[Normalize(name)]
	return id, ok
}

// Ref returns an entity ref when name resolves and a literal ref otherwise.
func (r *Resolution) Ref(name string) domain.Ref {
	if id, ok := r.Lookup(name); ok {
		return domain.EntityRef(id, name)
	}
	return domain.LiteralRef(name)
}

// Resolver deduplicates candidate entities against a project's canonical set.
type Resolver struct {
	entities domain.EntityStore
	logger   *zap.Logger
}

func NewResolver(es domain.EntityStore, logger *zap.Logger) *Resolver {
	return &Resolver{entities: es, logger: logger}
}

// Resolve maps every candidate to an entity id, creating entities for names
// not seen before. Entities created here are visible to later candidates in
// the same call, so the first spelling in a batch becomes canonical.
func (r *Resolver) Resolve(ctx context.Context, projectID uuid.UUID, candidates []domain.CandidateEntity) (*Resolution, error) {
	res := newResolution()
	if len(candidates) == 0 {
		return res, nil
	}

	existing, err := r.entities.GetByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}

	lookup := make(map[string]*domain.Entity, len(existing))
	for i := range existing {
		e := &existing[i]
		lookup[Normalize(e.CanonicalName)] = e
		for _, a := range e.Aliases {
			lookup[Normalize(a)] = e
		}
	}

	now := time.Now().UTC()
	created := 0
	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		key := Normalize(name)
		if key == "" {
			continue
		}

		if match, ok := lookup[key]; ok {
			if merged, added := mergeAliases(match.Aliases, c.Aliases); added {
				if err := r.entities.UpdateAliases(ctx, match.ID, merged, now); err != nil {
					return nil, fmt.Errorf("update aliases for %s: %w", match.ID, err)
				}
				match.Aliases = merged
				for _, a := range c.Aliases {
					if k := Normalize(a); k != "" {
						lookup[k] = match
					}
				}
			}
			res.add(name, match.ID)
			continue
		}

		e := &domain.Entity{
			ProjectID:     projectID,
			Type:          domain.NormalizeEntityType(string(c.Type)),
			CanonicalName: name,
			Aliases:       dedupeAliases(c.Aliases),
			Confidence:    c.Confidence,
		}
		if err := r.entities.Create(ctx, e); err != nil {
			return nil, fmt.Errorf("create entity %q: %w", name, err)
		}
		created++

		lookup[key] = e
		for _, a := range e.Aliases {
			if k := Normalize(a); k != "" {
				lookup[k] = e
			}
		}
		res.add(name, e.ID)
	}

	r.logger.Debug("entities resolved",
		zap.String("project_id", projectID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("created", created))
	return res, nil
}

// mergeAliases unions incoming into current, comparing case-insensitively.
func mergeAliases(current, incoming []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(current))
	for _, a := range current {
		seen[strings.ToLower(a)] = struct{}{}
	}
	merged := append([]string(nil), current...)
	added := false
	for _, a := range incoming {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(a)]; ok {
			continue
		}
		seen[strings.ToLower(a)] = struct{}{}
		merged = append(merged, a)
		added = true
	}
	return merged, added
}

func dedupeAliases(aliases []string) []string {
	out, _ := mergeAliases(nil, aliases)
	if out == nil {
		return []string{}
	}
	return out
}
