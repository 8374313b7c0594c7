package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
)

// memLinkRepository is an in-memory LinkRepository for exercising the
// dedup and state-transition invariants without a database.
type memLinkRepository struct {
	mu      sync.Mutex
	records map[string]*model.LinkRecord
	marked  []string

	failCreate error
	failMerge  error
	failList   error
}

func newMemLinkRepository() *memLinkRepository {
	return &memLinkRepository{records: map[string]*model.LinkRecord{}}
}

func (m *memLinkRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *memLinkRepository) CreateIfAbsent(ctx context.Context, record *model.LinkRecord) (bool, error) {
	if m.failCreate != nil {
		return false, m.failCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return false, nil
	}
	clone := *record
	m.records[record.ID] = &clone
	return true, nil
}

func (m *memLinkRepository) MergeEnrichment(ctx context.Context, id string, fields model.Enrichment) error {
	if m.failMerge != nil {
		return m.failMerge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return repository.ErrLinkNotFound
	}
	rec.Processed = true
	if fields.Category != nil {
		rec.Category = fields.Category
	}
	if fields.Subcategory != nil {
		rec.Subcategory = fields.Subcategory
	}
	if fields.Summary != nil {
		rec.Summary = fields.Summary
	}
	if fields.ReadingTime != nil {
		rec.ReadingTime = fields.ReadingTime
	}
	if fields.Popularity != nil {
		rec.Popularity = fields.Popularity
	}
	return nil
}

func (m *memLinkRepository) ListUnprocessed(ctx context.Context) ([]model.LinkRecord, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LinkRecord
	for _, rec := range m.records {
		if !rec.Processed {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memLinkRepository) ListUnsent(ctx context.Context) ([]model.LinkRecord, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LinkRecord
	for _, rec := range m.records {
		if !rec.MailSent {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memLinkRepository) MarkSent(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if rec, ok := m.records[id]; ok && !rec.MailSent {
			rec.MailSent = true
			n++
		}
	}
	m.marked = append(m.marked, ids...)
	return n, nil
}

func (m *memLinkRepository) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLinkRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memLinkRepository) get(id string) *model.LinkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

// memCursorRepository is an in-memory CursorRepository enforcing the same
// monotonic advance contract as the SQL implementation.
type memCursorRepository struct {
	mu      sync.Mutex
	cursors map[model.Source]int64
}

func newMemCursorRepository() *memCursorRepository {
	return &memCursorRepository{cursors: map[model.Source]int64{}}
}

func (m *memCursorRepository) Get(ctx context.Context, source model.Source) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cursors[source]
	if !ok {
		return 0, repository.ErrCursorNotFound
	}
	return id, nil
}

func (m *memCursorRepository) Advance(ctx context.Context, source model.Source, lastItemID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.cursors[source]; ok && lastItemID <= current {
		return false, nil
	}
	m.cursors[source] = lastItemID
	return true, nil
}

func (m *memCursorRepository) current(source model.Source) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cursors[source]
	return id, ok
}

// fakeSource serves canned pages. Item content is a whitespace-separated
// link list so tests stay independent of HTML parsing.
type fakeSource struct {
	name      model.Source
	pages     [][]Item
	paginates bool
	errAtPage int // 1-based FetchPage call that fails, 0 for never
	markErr   error

	fetchCalls int
	handled    []int64
}

func (s *fakeSource) Name() model.Source {
	if s.name == "" {
		return model.SourceMastodon
	}
	return s.name
}

func (s *fakeSource) Paginates() bool {
	return s.paginates
}

func (s *fakeSource) FetchPage(ctx context.Context, sinceID, beforeID int64) ([]Item, error) {
	s.fetchCalls++
	if s.errAtPage != 0 && s.fetchCalls == s.errAtPage {
		return nil, errors.New("upstream unavailable")
	}
	if s.fetchCalls > len(s.pages) {
		return nil, nil
	}
	return s.pages[s.fetchCalls-1], nil
}

func (s *fakeSource) Extract(content string) []string {
	return strings.Fields(content)
}

func (s *fakeSource) MarkHandled(ctx context.Context, item Item) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.handled = append(s.handled, item.ID)
	return nil
}

type mockLLM struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	prompts    []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return "", nil
}

type mockPopularity struct {
	pointsFn func(ctx context.Context, link string) (int, bool, error)
}

func (m *mockPopularity) Points(ctx context.Context, link string) (int, bool, error) {
	if m.pointsFn != nil {
		return m.pointsFn(ctx, link)
	}
	return 0, false, nil
}

type mockMailer struct {
	mu      sync.Mutex
	sendFn  func(ctx context.Context, from, to, subject, body string) error
	sent    int
	lastTo  string
	lastSub string
	body    string
}

func (m *mockMailer) Send(ctx context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendFn != nil {
		if err := m.sendFn(ctx, from, to, subject, body); err != nil {
			return err
		}
	}
	m.sent++
	m.lastTo = to
	m.lastSub = subject
	m.body = body
	return nil
}
