package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
)

// backupType marks the file as ours; imports refuse anything else.
const (
	backupType    = "user_backup"
	backupVersion = 1
)

type BackupService struct {
	Prompts    repository.PromptRepository
	Categories repository.CategoryRepository
	Library    *LibraryService
	Logger     *logrus.Logger
}

// BackupFile is the JSON export shape.
type BackupFile struct {
	Type       string           `json:"type"`
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Categories []BackupCategory `json:"categories"`
	Prompts    []BackupPrompt   `json:"prompts"`
}

type BackupCategory struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type BackupPrompt struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"` // category name, resolved on import
}

// Export collects the user's prompts and categories into a portable backup.
func (s *BackupService) Export(ctx context.Context, userID string) (*BackupFile, error) {
	cats, err := s.Categories.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompts, err := s.Prompts.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	catName := make(map[string]string, len(cats))
	out := &BackupFile{Type: backupType, Version: backupVersion, ExportedAt: time.Now().UTC()}
	for _, c := range cats {
		catName[c.ID] = c.Name
		out.Categories = append(out.Categories, BackupCategory{Name: c.Name, Description: c.Description})
	}
	for _, p := range prompts {
		bp := BackupPrompt{Title: p.Title, Content: p.Content}
		if p.CategoryID != nil {
			bp.Category = catName[*p.CategoryID]
		}
		out.Prompts = append(out.Prompts, bp)
	}
	return out, nil
}

// ExportJSON renders the backup as indented JSON.
func (s *BackupService) ExportJSON(ctx context.Context, userID string) ([]byte, error) {
	b, err := s.Export(ctx, userID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(b, "", "  ")
}

// ExportText renders the backup as a human-readable text file.
func (s *BackupService) ExportText(ctx context.Context, userID string) ([]byte, error) {
	b, err := s.Export(ctx, userID)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Promptash backup (exported %s)\n", b.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "%d categories, %d prompts\n\n", len(b.Categories), len(b.Prompts))
	for _, p := range b.Prompts {
		sb.WriteString("=== " + p.Title + "\n")
		if p.Category != "" {
			sb.WriteString("Category: " + p.Category + "\n")
		}
		sb.WriteString(p.Content + "\n\n")
	}
	return []byte(sb.String()), nil
}

// ImportReport summarizes what an import did. Errors are per-entry and do
// not abort the rest of the file.
type ImportReport struct {
	CategoriesCreated int      `json:"categories_created"`
	CategoriesMerged  int      `json:"categories_merged"`
	PromptsImported   int      `json:"prompts_imported"`
	PromptsSkipped    int      `json:"prompts_skipped"`
	Errors            []string `json:"errors,omitempty"`
}

// Import restores a backup into the user's library. Categories merge by
// name; prompts whose exact title and content already exist are skipped.
func (s *BackupService) Import(ctx context.Context, userID string, raw []byte) (*ImportReport, error) {
	var b BackupFile
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, ErrInvalidBackup
	}
	if b.Type != backupType {
		return nil, ErrInvalidBackup
	}

	report := &ImportReport{}
	catID := make(map[string]string)

	for _, bc := range b.Categories {
		name := strings.TrimSpace(bc.Name)
		if name == "" {
			report.Errors = append(report.Errors, "category with empty name skipped")
			continue
		}
		existing, err := s.Categories.GetByName(ctx, userID, name)
		if err == nil {
			catID[name] = existing.ID
			report.CategoriesMerged++
			continue
		}
		if !errors.Is(err, postgres.ErrNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("category %q: %v", name, err))
			continue
		}
		c := &entity.Category{UserID: userID, Name: name, Description: bc.Description}
		if err := s.Categories.Create(ctx, c); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("category %q: %v", name, err))
			continue
		}
		catID[name] = c.ID
		report.CategoriesCreated++
	}

	for i, bp := range b.Prompts {
		if strings.TrimSpace(bp.Title) == "" || strings.TrimSpace(bp.Content) == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("prompt %d: missing title or content", i+1))
			continue
		}
		exists, err := s.Prompts.ExistsByTitleContent(ctx, userID, bp.Title, bp.Content)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prompt %q: %v", bp.Title, err))
			continue
		}
		if exists {
			report.PromptsSkipped++
			report.Errors = append(report.Errors, fmt.Sprintf("prompt %q: duplicate skipped", bp.Title))
			continue
		}
		if err := s.Library.checkQuota(ctx, userID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prompt %q: %v", bp.Title, err))
			continue
		}
		p := &entity.Prompt{UserID: userID, Title: bp.Title, Content: bp.Content}
		if bp.Category != "" {
			if id, ok := catID[bp.Category]; ok {
				cid := id
				p.CategoryID = &cid
			} else if existing, err := s.Categories.GetByName(ctx, userID, bp.Category); err == nil {
				p.CategoryID = &existing.ID
			}
		}
		if err := s.Prompts.Create(ctx, p); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prompt %q: %v", bp.Title, err))
			continue
		}
		_ = s.Library.indexPrompt(ctx, p)
		report.PromptsImported++
	}

	return report, nil
}
