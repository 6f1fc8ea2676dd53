// Package manifest loads a desired-state YAML file of terms and chats and
// applies it through the reconcile core. Applying the same manifest twice
// leaves the store unchanged the second time.
//
//	terms:
//	  - id: 1
//	    content: Be kind.
//	chats:
//	  - id: -1001
//	    type: supergroup
//	    title: Example
//	    permissions:
//	      - user_id: 42
//	        flags: {can_ban: true}
//
// A chat without a permissions key keeps its current permissions; an empty
// list removes them all.
package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/logging"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
)

// Term is the desired content of one term.
type Term struct {
	ID      int64  `yaml:"id"`
	Content string `yaml:"content"`
}

// Chat is the desired state of one chat and, optionally, its permissions.
type Chat struct {
	ID     int64
	Fields domain.Fields

	// Permissions is nil when the manifest leaves them untouched.
	Permissions []domain.Fields
}

// Manifest is a parsed desired-state file.
type Manifest struct {
	Terms []Term
	Chats []Chat
}

type document struct {
	Terms []Term           `yaml:"terms"`
	Chats []map[string]any `yaml:"chats"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest and checks that every entry carries a usable,
// unique id.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	m := &Manifest{Terms: doc.Terms}
	seenTerms := make(map[int64]bool, len(doc.Terms))
	for i, t := range doc.Terms {
		if t.ID <= 0 {
			return nil, fmt.Errorf("manifest: terms[%d]: id must be positive", i)
		}
		if seenTerms[t.ID] {
			return nil, fmt.Errorf("manifest: terms[%d]: duplicate id %d", i, t.ID)
		}
		seenTerms[t.ID] = true
	}

	seenChats := make(map[int64]bool, len(doc.Chats))
	for i, raw := range doc.Chats {
		c, err := parseChat(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest: chats[%d]: %w", i, err)
		}
		if seenChats[c.ID] {
			return nil, fmt.Errorf("manifest: chats[%d]: duplicate id %d", i, c.ID)
		}
		seenChats[c.ID] = true
		m.Chats = append(m.Chats, c)
	}
	return m, nil
}

func parseChat(raw map[string]any) (Chat, error) {
	fields := domain.Fields{}
	for k, v := range raw {
		fields[k] = v
	}

	id, ok := asInt64(fields["id"])
	if !ok || id == 0 {
		return Chat{}, fmt.Errorf("id must be a non-zero integer")
	}
	delete(fields, "id")
	c := Chat{ID: id, Fields: fields}

	perms, has := fields["permissions"]
	if !has {
		return c, nil
	}
	delete(fields, "permissions")
	c.Permissions = []domain.Fields{}
	if perms == nil {
		return c, nil
	}
	list, isList := perms.([]any)
	if !isList {
		return Chat{}, fmt.Errorf("permissions must be a list")
	}
	for j, p := range list {
		pm, isMap := p.(map[string]any)
		if !isMap {
			return Chat{}, fmt.Errorf("permissions[%d] must be a mapping", j)
		}
		c.Permissions = append(c.Permissions, domain.Fields(pm))
	}
	return c, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), n <= 1<<63-1
	}
	return 0, false
}

// Core is the subset of the reconcile core used to apply a manifest.
type Core interface {
	ReconcileOrCreate(ctx context.Context, kind domain.Kind, id any, desired domain.Fields) (domain.Entity, error)
	ReconcileSet(ctx context.Context, spec reconcile.SetSpec, parent any, desired []domain.Fields) (reconcile.Changeset, error)
}

// ChatResult reports what applying one chat changed in its permissions.
// Permissions is nil when the manifest left them untouched.
type ChatResult struct {
	ChatID      int64                `json:"chat_id"`
	Permissions *reconcile.Changeset `json:"permissions,omitempty"`
}

// Report summarizes an Apply run. Chats follow manifest order.
type Report struct {
	Terms int          `json:"terms"`
	Chats []ChatResult `json:"chats"`
}

// Apply reconciles every term, then every chat with its permissions, at most
// concurrency chats at a time. The first failure cancels the remaining work;
// entries already applied stay applied.
func Apply(ctx context.Context, core Core, m *Manifest, concurrency int) (Report, error) {
	lg := logging.FromContext(ctx)
	if concurrency < 1 {
		concurrency = 1
	}

	rep := Report{Chats: make([]ChatResult, len(m.Chats))}
	for _, t := range m.Terms {
		if _, err := core.ReconcileOrCreate(ctx, domain.KindTerm, t.ID, domain.Fields{"content": t.Content}); err != nil {
			return rep, fmt.Errorf("term %d: %w", t.ID, err)
		}
		rep.Terms++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, c := range m.Chats {
		g.Go(func() error {
			if _, err := core.ReconcileOrCreate(gctx, domain.KindChat, c.ID, c.Fields); err != nil {
				return fmt.Errorf("chat %d: %w", c.ID, err)
			}
			res := ChatResult{ChatID: c.ID}
			ev := lg.Info().Int64("chat_id", c.ID)
			if c.Permissions != nil {
				cs, err := core.ReconcileSet(gctx, reconcile.PermissionSet(), c.ID, c.Permissions)
				if err != nil {
					return fmt.Errorf("chat %d permissions: %w", c.ID, err)
				}
				res.Permissions = &cs
				ev = ev.Int("created", len(cs.Created)).
					Int("updated", len(cs.Updated)).
					Int("deleted", len(cs.Deleted))
			}
			rep.Chats[i] = res
			ev.Msg("chat applied")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	return rep, nil
}
