// Package sessionmemory holds the per-session, NPC-isolated short memory
// ring and the cross-NPC preference record described in spec.md §4.2. It
// never stores facts: short memory is an ordered log of turns, preference
// memory carries only user-stated style choices.
package sessionmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Defaults from spec.md §4.2.
const (
	DefaultMaxMessages = 40
	DefaultMaxChars    = 8000
	DefaultTTL         = 24 * time.Hour
)

// MemoryDisclaimer precedes session memory when it is injected into a
// prompt, per spec.md §4.2's "context only, not a fact source" contract.
const MemoryDisclaimer = "The following is conversational context only, not a source of facts:"

// Store is the memory backend contract. All methods are scoped by
// (tenant, site, session); short-memory methods are additionally
// NPC-isolated via the npcID parameter.
type Store interface {
	AppendMessage(ctx context.Context, scope domain.Scope, sessionID, npcID string, msg domain.MemoryMessage) error
	GetRecentMessages(ctx context.Context, scope domain.Scope, sessionID, npcID string, limit, maxChars int) ([]domain.MemoryMessage, error)
	ClearSession(ctx context.Context, scope domain.Scope, sessionID, npcID string) error
	GetSessionSummary(ctx context.Context, scope domain.Scope, sessionID, npcID string, max int) (domain.SessionSummary, error)

	GetPreference(ctx context.Context, scope domain.Scope, sessionID string) (domain.Preference, error)
	UpdatePreference(ctx context.Context, scope domain.Scope, sessionID string, pref domain.Preference) error
	AddInterestTag(ctx context.Context, scope domain.Scope, sessionID, tag string) error
}

func shortKey(scope domain.Scope, sessionID, npcID string) string {
	return strings.Join([]string{scope.TenantID, scope.SiteID, sessionID, npcID}, "|")
}

func prefKey(scope domain.Scope, sessionID string) string {
	return strings.Join([]string{scope.TenantID, scope.SiteID, sessionID}, "|")
}

type shortMemory struct {
	messages  []domain.MemoryMessage
	expiresAt time.Time
}

type preferenceRecord struct {
	pref      domain.Preference
	expiresAt time.Time
}

// MemoryStore is the default in-process Store implementation. Append
// atomicity per (session, npc) is guaranteed by a per-key mutex, grounded
// on the teacher's session write-lock idiom (sync.Map of mutexes rather
// than one global lock).
type MemoryStore struct {
	maxMessages int
	maxChars    int
	ttl         time.Duration

	locks sync.Map // map[string]*sync.Mutex

	mu    sync.Mutex
	short map[string]*shortMemory
	prefs map[string]*preferenceRecord
}

// NewMemoryStore creates a Store with the given bounds. Zero values fall
// back to the spec defaults.
func NewMemoryStore(maxMessages, maxChars int, ttl time.Duration) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		maxMessages: maxMessages,
		maxChars:    maxChars,
		ttl:         ttl,
		short:       make(map[string]*shortMemory),
		prefs:       make(map[string]*preferenceRecord),
	}
}

func (s *MemoryStore) lockFor(key string) *sync.Mutex {
	m, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// AppendMessage adds a message to the NPC-isolated ring, trimming oldest
// messages first once either bound is exceeded.
func (s *MemoryStore) AppendMessage(_ context.Context, scope domain.Scope, sessionID, npcID string, msg domain.MemoryMessage) error {
	if !scope.Valid() || sessionID == "" || npcID == "" {
		return fmt.Errorf("sessionmemory: tenant, site, session, and npc are required")
	}
	key := shortKey(scope, sessionID, npcID)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	mem, ok := s.short[key]
	if !ok {
		mem = &shortMemory{}
		s.short[key] = mem
	}
	s.mu.Unlock()

	mem.messages = append(mem.messages, msg)
	mem.expiresAt = time.Now().Add(s.ttl)
	trimToBounds(mem, s.maxMessages, s.maxChars)
	return nil
}

// trimToBounds trims oldest-first by count, then by total character
// count, matching spec.md's edge case: count trimming happens before
// char trimming.
func trimToBounds(mem *shortMemory, maxMessages, maxChars int) {
	if len(mem.messages) > maxMessages {
		mem.messages = mem.messages[len(mem.messages)-maxMessages:]
	}
	total := 0
	for _, m := range mem.messages {
		total += len(m.Content)
	}
	for total > maxChars && len(mem.messages) > 0 {
		total -= len(mem.messages[0].Content)
		mem.messages = mem.messages[1:]
	}
}

// GetRecentMessages returns up to limit messages, chronologically
// ordered, trimmed from the oldest first to respect maxChars. A
// limit/maxChars of 0 falls back to the store's own bounds.
func (s *MemoryStore) GetRecentMessages(_ context.Context, scope domain.Scope, sessionID, npcID string, limit, maxChars int) ([]domain.MemoryMessage, error) {
	if limit <= 0 {
		limit = s.maxMessages
	}
	if maxChars <= 0 {
		maxChars = s.maxChars
	}
	key := shortKey(scope, sessionID, npcID)

	s.mu.Lock()
	mem, ok := s.short[key]
	s.mu.Unlock()
	if !ok || expired(mem.expiresAt) {
		return nil, nil
	}

	msgs := append([]domain.MemoryMessage(nil), mem.messages...)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	start := 0
	for total > maxChars && start < len(msgs) {
		total -= len(msgs[start].Content)
		start++
	}
	return msgs[start:], nil
}

// ClearSession removes short memory for one npc, or for every npc under
// the session when npcID is empty.
func (s *MemoryStore) ClearSession(_ context.Context, scope domain.Scope, sessionID, npcID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.Join([]string{scope.TenantID, scope.SiteID, sessionID}, "|")
	for k := range s.short {
		if npcID != "" {
			if k == shortKey(scope, sessionID, npcID) {
				delete(s.short, k)
			}
			continue
		}
		if strings.HasPrefix(k, prefix+"|") {
			delete(s.short, k)
		}
	}
	return nil
}

// GetSessionSummary returns the fixed SessionSummary shape for replay/API
// surfaces (spec.md §9 Open Questions).
func (s *MemoryStore) GetSessionSummary(ctx context.Context, scope domain.Scope, sessionID, npcID string, max int) (domain.SessionSummary, error) {
	msgs, err := s.GetRecentMessages(ctx, scope, sessionID, npcID, max, 0)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	summary := domain.SessionSummary{
		SessionID:      sessionID,
		MessageCount:   len(msgs),
		RecentMessages: msgs,
	}
	if len(msgs) > 0 {
		first, last := msgs[0].Timestamp, msgs[len(msgs)-1].Timestamp
		summary.FirstMessageAt = &first
		summary.LastMessageAt = &last
	}
	return summary, nil
}

// GetPreference returns the cross-NPC preference record, zero-valued if
// none exists or it has expired.
func (s *MemoryStore) GetPreference(_ context.Context, scope domain.Scope, sessionID string) (domain.Preference, error) {
	key := prefKey(scope, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.prefs[key]
	if !ok || expired(rec.expiresAt) {
		return domain.Preference{}, nil
	}
	return rec.pref, nil
}

// UpdatePreference overwrites the preference record. Callers are
// responsible for never passing factual claims in free-form fields.
func (s *MemoryStore) UpdatePreference(_ context.Context, scope domain.Scope, sessionID string, pref domain.Preference) error {
	key := prefKey(scope, sessionID)
	pref.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key] = &preferenceRecord{pref: pref, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

// AddInterestTag appends a tag to the preference record if not already
// present.
func (s *MemoryStore) AddInterestTag(_ context.Context, scope domain.Scope, sessionID, tag string) error {
	if tag == "" {
		return fmt.Errorf("sessionmemory: tag must not be empty")
	}
	key := prefKey(scope, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.prefs[key]
	if !ok || expired(rec.expiresAt) {
		rec = &preferenceRecord{}
		s.prefs[key] = rec
	}
	for _, t := range rec.pref.InterestTags {
		if t == tag {
			rec.expiresAt = time.Now().Add(s.ttl)
			return nil
		}
	}
	rec.pref.InterestTags = append(rec.pref.InterestTags, tag)
	rec.pref.UpdatedAt = time.Now()
	rec.expiresAt = time.Now().Add(s.ttl)
	return nil
}

func expired(t time.Time) bool {
	return !t.IsZero() && time.Now().After(t)
}

// PromptSuffix renders recent messages and preference into a
// disclaimer-wrapped string suitable for appending to a system prompt.
func PromptSuffix(msgs []domain.MemoryMessage, pref domain.Preference) string {
	if len(msgs) == 0 && pref.Verbosity == "" && pref.Tone == "" && len(pref.InterestTags) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(MemoryDisclaimer)
	b.WriteString("\n")
	ordered := append([]domain.MemoryMessage(nil), msgs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	for _, m := range ordered {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	if pref.Verbosity != "" || pref.Tone != "" || len(pref.InterestTags) > 0 {
		fmt.Fprintf(&b, "preferences: verbosity=%s tone=%s interests=%s\n",
			pref.Verbosity, pref.Tone, strings.Join(pref.InterestTags, ","))
	}
	return b.String()
}
