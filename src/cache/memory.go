package cache

import (
	"container/list"
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds a MemoryStore built with capacity <= 0.
const DefaultMemoryCapacity = 1024

// Entry holds a cached value with its expiration.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// MemoryStore is a thread-safe in-process LRU with per-entry TTL. It backs
// the cache when no Redis URL is configured.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type memoryItem struct {
	key   string
	entry Entry
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get retrieves a value, dropping it if expired.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	item := elem.Value.(*memoryItem)
	if item.entry.expired(m.now()) {
		m.remove(elem)
		return nil, false, nil
	}
	m.lru.MoveToFront(elem)
	return append([]byte(nil), item.entry.Value...), true, nil
}

// Set adds or replaces a value. A ttl <= 0 never expires.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := Entry{Value: append([]byte(nil), value...), CreatedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	if elem, ok := m.items[key]; ok {
		m.lru.MoveToFront(elem)
		elem.Value.(*memoryItem).entry = e
		return nil
	}

	m.items[key] = m.lru.PushFront(&memoryItem{key: key, entry: e})
	for m.lru.Len() > m.capacity {
		m.remove(m.lru.Back())
	}
	return nil
}

// Delete removes keys matching a Redis-style glob pattern: * and ? match any
// character including '/', [...] and [^...] are character classes, and a
// backslash quotes the next character.
func (m *MemoryStore) Delete(_ context.Context, pattern string) (int, error) {
	re, err := globRegexp(pattern)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, elem := range m.items {
		if re.MatchString(key) {
			m.remove(elem)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op; a MemoryStore stays usable after a redial.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Dump snapshots live entries.
func (m *MemoryStore) Dump() map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dump := make(map[string]Entry, len(m.items))
	for k, elem := range m.items {
		e := elem.Value.(*memoryItem).entry
		if !e.expired(now) {
			dump[k] = e
		}
	}
	return dump
}

func (m *MemoryStore) remove(elem *list.Element) {
	if elem == nil {
		return
	}
	m.lru.Remove(elem)
	delete(m.items, elem.Value.(*memoryItem).key)
}

// ValidatePattern reports whether pattern is a well-formed glob.
func ValidatePattern(pattern string) error {
	_, err := globRegexp(pattern)
	return err
}

func globRegexp(pattern string) (*regexp.Regexp, error) {
	runes := []rune(pattern)
	var b strings.Builder
	b.WriteString("(?s)^")
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '\\':
			if i+1 < len(runes) {
				i++
			}
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case '[':
			class, end, err := globClass(runes, i+1)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, pattern)
			}
			b.WriteString(class)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// globClass translates the class starting after '[' at runes[start] and
// returns the index of its closing ']'. Reversed ranges are swapped, as
// Redis does.
func globClass(runes []rune, start int) (string, int, error) {
	var b strings.Builder
	i := start
	negate := i < len(runes) && runes[i] == '^'
	if negate {
		i++
	}
	for ; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == ']':
			return classRegexp(b.String(), negate), i, nil
		case r == '\\' && i+1 < len(runes):
			i++
			b.WriteString(classRune(runes[i]))
		case i+2 < len(runes) && runes[i+1] == '-' && runes[i+2] != ']':
			lo, hi := r, runes[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			b.WriteString(classRune(lo) + "-" + classRune(hi))
			i += 2
		default:
			b.WriteString(classRune(r))
		}
	}
	return "", 0, ErrBadPattern
}

func classRegexp(members string, negate bool) string {
	switch {
	case members == "" && negate:
		return "."
	case members == "":
		return `[^\x{0}-\x{10FFFF}]`
	case negate:
		return "[^" + members + "]"
	default:
		return "[" + members + "]"
	}
}

func classRune(r rune) string {
	return fmt.Sprintf(`\x{%x}`, r)
}
