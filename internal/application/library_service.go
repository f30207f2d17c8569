package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/mailer"
	"github.com/promptash/promptash/pkg/mailer/templates"
)

// usageAlertThreshold is the fraction of the tier item limit at which the
// user gets a one-per-day warning email.
const usageAlertThreshold = 0.8

type LibraryService struct {
	Prompts    repository.PromptRepository
	Categories repository.CategoryRepository
	Items      repository.ItemRepository
	Shares     repository.ShareRepository
	Users      repository.UserRepository
	Tiers      repository.TierRepository
	Tokens     TokenStore
	Mail       EmailPublisher
	ES         *elasticsearch.Client
	GCS        *storage.Client
	Logger     *logrus.Logger
	Cfg        *config.Config
}

func keyUsageAlert(userID string) string { return "usage:alert:" + userID }

// Categories.

type CategoryInput struct {
	Name        string
	Description string
}

func (s *LibraryService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (*entity.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		v := newValidationError()
		v.add("name", "must not be empty")
		return nil, v
	}
	c := &entity.Category{UserID: userID, Name: name, Description: in.Description}
	if err := s.Categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LibraryService) ListCategories(ctx context.Context, userID string) ([]entity.Category, error) {
	return s.Categories.List(ctx, userID)
}

func (s *LibraryService) UpdateCategory(ctx context.Context, userID, id string, in CategoryInput) (*entity.Category, error) {
	c, err := s.Categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
	}
	c.Description = in.Description
	if err := s.Categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes the category; prompts in it are detached, not
// deleted.
func (s *LibraryService) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.Categories.Delete(ctx, userID, id)
}

// Prompts.

type PromptInput struct {
	Title      string
	Content    string
	CategoryID *string
}

func (s *LibraryService) CreatePrompt(ctx context.Context, userID string, in PromptInput) (*entity.Prompt, error) {
	if verr := validateTitleContent(in.Title, in.Content); verr != nil {
		return nil, verr
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if err := s.ownCategory(ctx, userID, *in.CategoryID); err != nil {
			return nil, err
		}
	}
	p := &entity.Prompt{UserID: userID, CategoryID: in.CategoryID, Title: in.Title, Content: in.Content}
	if err := s.Prompts.Create(ctx, p); err != nil {
		return nil, err
	}
	_ = s.indexPrompt(ctx, p)
	s.maybeUsageAlert(ctx, userID)
	return p, nil
}

// GetPrompt returns a prompt the user owns or one shared with them.
func (s *LibraryService) GetPrompt(ctx context.Context, userID, id string) (*entity.Prompt, error) {
	p, err := s.Prompts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID && !s.sharedWith(ctx, userID, entity.KindPrompt, p.ID) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *LibraryService) ListPrompts(ctx context.Context, userID string, f repository.ListFilter) ([]entity.Prompt, error) {
	return s.Prompts.List(ctx, userID, f)
}

func (s *LibraryService) UpdatePrompt(ctx context.Context, userID, id string, in PromptInput) (*entity.Prompt, error) {
	p, err := s.Prompts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	if verr := validateTitleContent(in.Title, in.Content); verr != nil {
		return nil, verr
	}
	if in.CategoryID != nil {
		if err := s.ownCategory(ctx, userID, *in.CategoryID); err != nil {
			return nil, err
		}
	}
	p.Title = in.Title
	p.Content = in.Content
	p.CategoryID = in.CategoryID
	if err := s.Prompts.Update(ctx, p); err != nil {
		return nil, err
	}
	_ = s.indexPrompt(ctx, p)
	return p, nil
}

func (s *LibraryService) DeletePrompt(ctx context.Context, userID, id string) error {
	if err := s.Prompts.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.deindexPrompt(ctx, id)
	return nil
}

// SearchPrompts queries Elasticsearch over the user's prompts and falls back
// to a database ILIKE scan when the cluster is unavailable.
func (s *LibraryService) SearchPrompts(ctx context.Context, userID, q string, size int) ([]entity.Prompt, error) {
	if size <= 0 || size > 50 {
		size = 20
	}
	if s.ES != nil && s.Cfg.ESPromptsIndex != "" {
		hits, err := s.searchES(ctx, userID, q, size)
		if err == nil {
			return hits, nil
		}
		if s.Logger != nil {
			s.Logger.WithError(err).Warn("es search failed, falling back to database")
		}
	}
	return s.Prompts.List(ctx, userID, repository.ListFilter{Search: q, PerPage: size})
}

func (s *LibraryService) searchES(ctx context.Context, userID, q string, size int) ([]entity.Prompt, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  q,
						"fields": []string{"title^2", "content"},
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"user_id": userID},
				},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.Cfg.ESPromptsIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, errors.New("es search: " + res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					UserID     string `json:"user_id"`
					CategoryID string `json:"category_id"`
					Title      string `json:"title"`
					Content    string `json:"content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]entity.Prompt, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		p := entity.Prompt{ID: h.ID, UserID: h.Source.UserID, Title: h.Source.Title, Content: h.Source.Content}
		if h.Source.CategoryID != "" {
			cid := h.Source.CategoryID
			p.CategoryID = &cid
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *LibraryService) indexPrompt(ctx context.Context, p *entity.Prompt) error {
	if s.ES == nil || s.Cfg.ESPromptsIndex == "" {
		return nil
	}
	doc := map[string]any{
		"user_id":    p.UserID,
		"title":      p.Title,
		"content":    p.Content,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if p.CategoryID != nil {
		doc["category_id"] = *p.CategoryID
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.Cfg.ESPromptsIndex, DocumentID: p.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("prompt_id", p.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("prompt_id", p.ID).Warn("es index response error")
	}
	return nil
}

func (s *LibraryService) deindexPrompt(ctx context.Context, id string) {
	if s.ES == nil || s.Cfg.ESPromptsIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.Cfg.ESPromptsIndex, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("prompt_id", id).Warn("es delete failed")
		}
		return
	}
	_ = res.Body.Close()
}

// Items: notes, documents, videos and bookmarks.

type ItemInput struct {
	Title      string
	Content    string
	URL        string
	CategoryID *string
}

func validKind(kind string) bool {
	switch kind {
	case entity.KindNote, entity.KindDocument, entity.KindVideo, entity.KindBookmark:
		return true
	}
	return false
}

func (s *LibraryService) CreateItem(ctx context.Context, userID, kind string, in ItemInput) (*entity.LibraryItem, error) {
	if !validKind(kind) {
		v := newValidationError()
		v.add("kind", "must be one of note, document, video, bookmark")
		return nil, v
	}
	if strings.TrimSpace(in.Title) == "" {
		v := newValidationError()
		v.add("title", "must not be empty")
		return nil, v
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	it := &entity.LibraryItem{UserID: userID, Kind: kind, CategoryID: in.CategoryID, Title: in.Title, Content: in.Content, URL: in.URL}
	if err := s.Items.Create(ctx, it); err != nil {
		return nil, err
	}
	s.maybeUsageAlert(ctx, userID)
	return it, nil
}

// UploadDocument stores the file in the bucket and creates a document item
// pointing at it.
func (s *LibraryService) UploadDocument(ctx context.Context, userID, title string, r io.Reader, filename, contentType string) (*entity.LibraryItem, error) {
	if s.GCS == nil || s.Cfg.GCSBucket == "" {
		return nil, errors.New("object storage not configured")
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("documents", userID, uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.Cfg.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = filename
	}
	it := &entity.LibraryItem{UserID: userID, Kind: entity.KindDocument, Title: title, URL: url}
	if err := s.Items.Create(ctx, it); err != nil {
		return nil, err
	}
	s.maybeUsageAlert(ctx, userID)
	return it, nil
}

func (s *LibraryService) GetItem(ctx context.Context, userID, kind, id string) (*entity.LibraryItem, error) {
	it, err := s.Items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// The kind is part of the item's identity; a note is not addressable as a
	// bookmark.
	if it.Kind != kind {
		return nil, postgres.ErrNotFound
	}
	if it.UserID != userID && !s.sharedWith(ctx, userID, it.Kind, it.ID) {
		return nil, ErrForbidden
	}
	return it, nil
}

func (s *LibraryService) ListItems(ctx context.Context, userID, kind string, f repository.ListFilter) ([]entity.LibraryItem, error) {
	if !validKind(kind) {
		v := newValidationError()
		v.add("kind", "must be one of note, document, video, bookmark")
		return nil, v
	}
	return s.Items.List(ctx, userID, kind, f)
}

func (s *LibraryService) UpdateItem(ctx context.Context, userID, id string, in ItemInput) (*entity.LibraryItem, error) {
	it, err := s.Items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) != "" {
		it.Title = in.Title
	}
	it.Content = in.Content
	if in.URL != "" {
		it.URL = in.URL
	}
	it.CategoryID = in.CategoryID
	if err := s.Items.Update(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *LibraryService) DeleteItem(ctx context.Context, userID, id string) error {
	return s.Items.Delete(ctx, userID, id)
}

// Sharing.

// ShareItem exposes an owned item to one user (by username) or to everyone
// when username is empty.
func (s *LibraryService) ShareItem(ctx context.Context, ownerID, kind, itemID, username string) (*entity.Share, error) {
	if err := s.ownItem(ctx, ownerID, kind, itemID); err != nil {
		return nil, err
	}
	sh := &entity.Share{ItemKind: kind, ItemID: itemID, OwnerID: ownerID}
	if username != "" {
		target, err := s.Users.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		if target.ID == ownerID {
			return nil, ErrForbidden
		}
		sh.SharedWith = &target.ID
	}
	if err := s.Shares.Create(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *LibraryService) UnshareItem(ctx context.Context, ownerID, kind, itemID, username string) error {
	var sharedWith *string
	if username != "" {
		target, err := s.Users.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		sharedWith = &target.ID
	}
	return s.Shares.Delete(ctx, ownerID, kind, itemID, sharedWith)
}

func (s *LibraryService) ListShares(ctx context.Context, ownerID, kind, itemID string) ([]entity.Share, error) {
	if err := s.ownItem(ctx, ownerID, kind, itemID); err != nil {
		return nil, err
	}
	return s.Shares.ListForItem(ctx, kind, itemID)
}

// SharedPrompts returns prompts other users shared with this one.
func (s *LibraryService) SharedPrompts(ctx context.Context, userID string) ([]entity.Prompt, error) {
	shares, err := s.Shares.ListSharedWith(ctx, userID, entity.KindPrompt)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Prompt, 0, len(shares))
	for _, sh := range shares {
		p, err := s.Prompts.GetByID(ctx, sh.ItemID)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// SharedItems returns non-prompt items of a kind shared with this user.
func (s *LibraryService) SharedItems(ctx context.Context, userID, kind string) ([]entity.LibraryItem, error) {
	shares, err := s.Shares.ListSharedWith(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]entity.LibraryItem, 0, len(shares))
	for _, sh := range shares {
		it, err := s.Items.GetByID(ctx, sh.ItemID)
		if err != nil {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

// Usage is the current item count against the plan limit.
type Usage struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"` // 0 means unlimited
	Plan  string `json:"plan"`
}

func (s *LibraryService) CurrentUsage(ctx context.Context, userID string) (*Usage, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	used, err := s.countAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := 0
	if tier, err := s.Tiers.GetByName(ctx, u.Plan); err == nil {
		limit = tier.ItemLimit
	}
	return &Usage{Used: used, Limit: limit, Plan: u.Plan}, nil
}

func (s *LibraryService) countAll(ctx context.Context, userID string) (int, error) {
	prompts, err := s.Prompts.CountByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	items, err := s.Items.CountByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return prompts + items, nil
}

// checkQuota blocks a create once the tier limit is reached.
func (s *LibraryService) checkQuota(ctx context.Context, userID string) error {
	usage, err := s.CurrentUsage(ctx, userID)
	if err != nil {
		return err
	}
	if usage.Limit > 0 && usage.Used >= usage.Limit {
		return ErrQuotaExceeded
	}
	return nil
}

// maybeUsageAlert emails the user once they cross 80% of their limit, at
// most once per day.
func (s *LibraryService) maybeUsageAlert(ctx context.Context, userID string) {
	if s.Mail == nil {
		return
	}
	usage, err := s.CurrentUsage(ctx, userID)
	if err != nil || usage.Limit <= 0 {
		return
	}
	if float64(usage.Used) < usageAlertThreshold*float64(usage.Limit) {
		return
	}
	if s.Tokens != nil {
		if _, sent, _ := s.Tokens.Get(ctx, keyUsageAlert(userID)); sent {
			return
		}
		_ = s.Tokens.Set(ctx, keyUsageAlert(userID), "1", 24*time.Hour)
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: templates.UsageAlert,
		Data: map[string]any{
			"Name":  u.Username,
			"Used":  usage.Used,
			"Limit": usage.Limit,
			"Plan":  usage.Plan,
		},
	}
	if err := s.Mail.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("to", u.Email).Warn("usage alert enqueue failed")
	}
}

// Helpers.

func (s *LibraryService) ownCategory(ctx context.Context, userID, categoryID string) error {
	c, err := s.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *LibraryService) ownItem(ctx context.Context, userID, kind, itemID string) error {
	if kind == entity.KindPrompt {
		p, err := s.Prompts.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrForbidden
		}
		return nil
	}
	it, err := s.Items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if it.UserID != userID || it.Kind != kind {
		return ErrForbidden
	}
	return nil
}

func (s *LibraryService) sharedWith(ctx context.Context, userID, kind, itemID string) bool {
	shares, err := s.Shares.ListForItem(ctx, kind, itemID)
	if err != nil {
		return false
	}
	for _, sh := range shares {
		if sh.SharedWith == nil || *sh.SharedWith == userID {
			return true
		}
	}
	return false
}

func validateTitleContent(title, content string) *ValidationError {
	v := newValidationError()
	if strings.TrimSpace(title) == "" {
		v.add("title", "must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		v.add("content", "must not be empty")
	}
	if v.empty() {
		return nil
	}
	return v
}
