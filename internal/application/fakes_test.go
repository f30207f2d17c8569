package application

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/payment"
)

// In-memory doubles for the repository interfaces. They hold just enough
// behavior for the service tests.

type memUsers struct {
	mu      sync.Mutex
	seq     int
	users   map[string]*entity.User
	codes   map[string][]entity.RecoveryCode
	codeSeq int
	deleted []string
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*entity.User{}, codes: map[string][]entity.RecoveryCode{}}
}

func (m *memUsers) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	u.ID = "u" + strconv.Itoa(m.seq)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return postgres.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memUsers) ReplaceRecoveryCodes(_ context.Context, userID string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.RecoveryCode, 0, len(hashes))
	for _, h := range hashes {
		m.codeSeq++
		out = append(out, entity.RecoveryCode{ID: "rc" + strconv.Itoa(m.codeSeq), UserID: userID, CodeHash: h})
	}
	m.codes[userID] = out
	return nil
}

func (m *memUsers) ListUnusedRecoveryCodes(_ context.Context, userID string) ([]entity.RecoveryCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.RecoveryCode
	for _, rc := range m.codes[userID] {
		if rc.UsedAt == nil {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (m *memUsers) MarkRecoveryCodeUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for userID, list := range m.codes {
		for i := range list {
			if list[i].ID == id {
				list[i].UsedAt = &now
				m.codes[userID] = list
				return nil
			}
		}
	}
	return postgres.ErrNotFound
}

type memCheckouts struct {
	mu  sync.Mutex
	seq int
	byT map[string]*entity.PendingCheckout
}

func newMemCheckouts() *memCheckouts {
	return &memCheckouts{byT: map[string]*entity.PendingCheckout{}}
}

func (m *memCheckouts) Create(_ context.Context, c *entity.PendingCheckout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = "co" + strconv.Itoa(m.seq)
	cp := *c
	m.byT[c.Token] = &cp
	return nil
}

func (m *memCheckouts) GetByToken(_ context.Context, token string) (*entity.PendingCheckout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byT[token]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCheckouts) UpdateStatus(_ context.Context, token, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byT[token]
	if !ok {
		return postgres.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memCheckouts) Consume(_ context.Context, token, want, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byT[token]
	if !ok || c.Status != want || time.Now().After(c.ExpiresAt) {
		return postgres.ErrNotFound
	}
	c.Status = entity.CheckoutCompleted
	c.UserID = &userID
	return nil
}

type memTiers struct {
	tiers map[string]entity.MembershipTier
}

func newMemTiers(tiers ...entity.MembershipTier) *memTiers {
	m := &memTiers{tiers: map[string]entity.MembershipTier{}}
	for _, t := range tiers {
		m.tiers[t.Name] = t
	}
	return m
}

func (m *memTiers) GetByName(_ context.Context, name string) (*entity.MembershipTier, error) {
	t, ok := m.tiers[name]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return &t, nil
}

func (m *memTiers) List(_ context.Context) ([]entity.MembershipTier, error) {
	out := make([]entity.MembershipTier, 0, len(m.tiers))
	for _, t := range m.tiers {
		out = append(out, t)
	}
	return out, nil
}

type memPrompts struct {
	mu      sync.Mutex
	seq     int
	prompts map[string]*entity.Prompt
}

func newMemPrompts() *memPrompts { return &memPrompts{prompts: map[string]*entity.Prompt{}} }

func (m *memPrompts) Create(_ context.Context, p *entity.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = "p" + strconv.Itoa(m.seq)
	cp := *p
	m.prompts[p.ID] = &cp
	return nil
}

func (m *memPrompts) GetByID(_ context.Context, id string) (*entity.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPrompts) List(ctx context.Context, userID string, f repository.ListFilter) ([]entity.Prompt, error) {
	all, err := m.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.Search == "" {
		return all, nil
	}
	var out []entity.Prompt
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Title+" "+p.Content), strings.ToLower(f.Search)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPrompts) ListAll(_ context.Context, userID string) ([]entity.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Prompt
	for _, p := range m.prompts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPrompts) ExistsByTitleContent(_ context.Context, userID, title, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if p.UserID == userID && p.Title == title && p.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPrompts) Update(_ context.Context, p *entity.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[p.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *p
	m.prompts[p.ID] = &cp
	return nil
}

func (m *memPrompts) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok || p.UserID != userID {
		return postgres.ErrNotFound
	}
	delete(m.prompts, id)
	return nil
}

func (m *memPrompts) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memCategories struct {
	mu   sync.Mutex
	seq  int
	cats map[string]*entity.Category
}

func newMemCategories() *memCategories { return &memCategories{cats: map[string]*entity.Category{}} }

func (m *memCategories) Create(_ context.Context, c *entity.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = "c" + strconv.Itoa(m.seq)
	cp := *c
	m.cats[c.ID] = &cp
	return nil
}

func (m *memCategories) GetByID(_ context.Context, id string) (*entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCategories) GetByName(_ context.Context, userID, name string) (*entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if c.UserID == userID && c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memCategories) List(_ context.Context, userID string) ([]entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Category
	for _, c := range m.cats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCategories) Update(_ context.Context, c *entity.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cats[c.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *c
	m.cats[c.ID] = &cp
	return nil
}

func (m *memCategories) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats[id]
	if !ok || c.UserID != userID {
		return postgres.ErrNotFound
	}
	delete(m.cats, id)
	return nil
}

type memItems struct {
	mu    sync.Mutex
	seq   int
	items map[string]*entity.LibraryItem
}

func newMemItemsForTest() *memItems { return &memItems{items: map[string]*entity.LibraryItem{}} }

func (m *memItems) Create(_ context.Context, it *entity.LibraryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	it.ID = "i" + strconv.Itoa(m.seq)
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memItems) GetByID(_ context.Context, id string) (*entity.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memItems) List(_ context.Context, userID, kind string, _ repository.ListFilter) ([]entity.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.LibraryItem
	for _, it := range m.items {
		if it.UserID == userID && it.Kind == kind {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memItems) Update(_ context.Context, it *entity.LibraryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memItems) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return postgres.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memItems) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memShares struct {
	mu     sync.Mutex
	seq    int
	shares map[string]*entity.Share
}

func newMemShares() *memShares { return &memShares{shares: map[string]*entity.Share{}} }

func (m *memShares) Create(_ context.Context, s *entity.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range m.shares {
		if sh.ItemKind == s.ItemKind && sh.ItemID == s.ItemID && ptrEq(sh.SharedWith, s.SharedWith) {
			return nil // mirror ON CONFLICT DO NOTHING
		}
	}
	m.seq++
	s.ID = "s" + strconv.Itoa(m.seq)
	cp := *s
	m.shares[s.ID] = &cp
	return nil
}

func (m *memShares) Delete(_ context.Context, ownerID, itemKind, itemID string, sharedWith *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sh := range m.shares {
		if sh.OwnerID == ownerID && sh.ItemKind == itemKind && sh.ItemID == itemID && ptrEq(sh.SharedWith, sharedWith) {
			delete(m.shares, id)
		}
	}
	return nil
}

func (m *memShares) ListForItem(_ context.Context, itemKind, itemID string) ([]entity.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Share
	for _, sh := range m.shares {
		if sh.ItemKind == itemKind && sh.ItemID == itemID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (m *memShares) ListSharedWith(_ context.Context, userID, itemKind string) ([]entity.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Share
	for _, sh := range m.shares {
		if sh.ItemKind != itemKind || sh.OwnerID == userID {
			continue
		}
		if sh.SharedWith == nil || *sh.SharedWith == userID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// memTokenStore is a TTL-less TokenStore double.
type memTokenStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemTokenStore() *memTokenStore { return &memTokenStore{data: map[string]string{}} }

func (m *memTokenStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memTokenStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memTokenStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// captureMail records published email jobs.
type captureMail struct {
	mu   sync.Mutex
	jobs []any
}

func (c *captureMail) PublishJSON(_ context.Context, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, body)
	return nil
}

func (c *captureMail) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// fakeProvider is a scripted payment provider.
type fakeProvider struct {
	initErr    error
	verifyTx   *payment.Transaction
	verifyErr  error
	goodSig    string
	initCalled int
}

func (f *fakeProvider) Initialize(_ context.Context, _, reference string, _ int64, _ string) (*payment.InitializeResult, error) {
	f.initCalled++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &payment.InitializeResult{AuthorizationURL: "https://pay.example/" + reference, Reference: reference}, nil
}

func (f *fakeProvider) Verify(_ context.Context, reference string) (*payment.Transaction, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyTx != nil {
		return f.verifyTx, nil
	}
	return &payment.Transaction{Reference: reference, Status: "success"}, nil
}

func (f *fakeProvider) VerifySignature(_ []byte, signature string) bool {
	if f.goodSig == "" {
		return true
	}
	return signature == f.goodSig
}
