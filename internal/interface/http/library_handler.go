package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/response"
	"github.com/promptash/promptash/pkg/validation"
)

// maxUploadBytes caps document uploads at 20 MiB.
const maxUploadBytes = 20 << 20

type LibraryHandler struct {
	Svc *application.LibraryService
}

func NewLibraryHandler(svc *application.LibraryService) *LibraryHandler {
	return &LibraryHandler{Svc: svc}
}

func uid(c *gin.Context) string { return c.GetString(middleware.CtxUserIDKey) }

func listFilter(c *gin.Context) repository.ListFilter {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return repository.ListFilter{
		Search:     c.Query("q"),
		CategoryID: c.Query("category_id"),
		Page:       page,
		PerPage:    perPage,
	}
}

// Categories.

// CreateCategory POST /api/categories {name, description}
func (h *LibraryHandler) CreateCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	cat, err := h.Svc.CreateCategory(c.Request.Context(), uid(c), application.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, cat, "category created", nil)
}

// ListCategories GET /api/categories
func (h *LibraryHandler) ListCategories(c *gin.Context) {
	cats, err := h.Svc.ListCategories(c.Request.Context(), uid(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cats, "categories", nil)
}

// UpdateCategory PUT /api/categories/:id
func (h *LibraryHandler) UpdateCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	cat, err := h.Svc.UpdateCategory(c.Request.Context(), uid(c), c.Param("id"), application.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cat, "category updated", nil)
}

// DeleteCategory DELETE /api/categories/:id
// Prompts in the category are detached, not deleted.
func (h *LibraryHandler) DeleteCategory(c *gin.Context) {
	if err := h.Svc.DeleteCategory(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "category deleted", nil)
}

// Prompts.

type promptRequest struct {
	Title      string  `json:"title" binding:"required"`
	Content    string  `json:"content" binding:"required"`
	CategoryID *string `json:"category_id"`
}

// CreatePrompt POST /api/prompts
func (h *LibraryHandler) CreatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.CreatePrompt(c.Request.Context(), uid(c), application.PromptInput{Title: req.Title, Content: req.Content, CategoryID: req.CategoryID})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p, "prompt created", nil)
}

// GetPrompt GET /api/prompts/:id
func (h *LibraryHandler) GetPrompt(c *gin.Context) {
	p, err := h.Svc.GetPrompt(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "prompt", nil)
}

// ListPrompts GET /api/prompts?q=&category_id=&page=&per_page=
func (h *LibraryHandler) ListPrompts(c *gin.Context) {
	prompts, err := h.Svc.ListPrompts(c.Request.Context(), uid(c), listFilter(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, prompts, "prompts", nil)
}

// SearchPrompts GET /api/prompts/search?q=&size=
func (h *LibraryHandler) SearchPrompts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	prompts, err := h.Svc.SearchPrompts(c.Request.Context(), uid(c), q, size)
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, prompts, "search results", nil)
}

// UpdatePrompt PUT /api/prompts/:id
func (h *LibraryHandler) UpdatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.UpdatePrompt(c.Request.Context(), uid(c), c.Param("id"), application.PromptInput{Title: req.Title, Content: req.Content, CategoryID: req.CategoryID})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "prompt updated", nil)
}

// DeletePrompt DELETE /api/prompts/:id
func (h *LibraryHandler) DeletePrompt(c *gin.Context) {
	if err := h.Svc.DeletePrompt(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "prompt deleted", nil)
}

// Items (notes, documents, videos, bookmarks). Kind comes from the route.

type itemRequest struct {
	Title      string  `json:"title" binding:"required"`
	Content    string  `json:"content"`
	URL        string  `json:"url"`
	CategoryID *string `json:"category_id"`
}

// CreateItem POST /api/items/:kind
func (h *LibraryHandler) CreateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	it, err := h.Svc.CreateItem(c.Request.Context(), uid(c), c.Param("kind"), application.ItemInput{Title: req.Title, Content: req.Content, URL: req.URL, CategoryID: req.CategoryID})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, it, "item created", nil)
}

// UploadDocument POST /api/items/document/upload (multipart: file, title)
func (h *LibraryHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing file", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	it, err := h.Svc.UploadDocument(c.Request.Context(), uid(c), c.PostForm("title"), f, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, it, "document uploaded", nil)
}

// GetItem GET /api/items/:kind/:id
func (h *LibraryHandler) GetItem(c *gin.Context) {
	it, err := h.Svc.GetItem(c.Request.Context(), uid(c), c.Param("kind"), c.Param("id"))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, it, "item", nil)
}

// ListItems GET /api/items/:kind
func (h *LibraryHandler) ListItems(c *gin.Context) {
	items, err := h.Svc.ListItems(c.Request.Context(), uid(c), c.Param("kind"), listFilter(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items, "items", nil)
}

// UpdateItem PUT /api/items/:kind/:id
func (h *LibraryHandler) UpdateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	it, err := h.Svc.UpdateItem(c.Request.Context(), uid(c), c.Param("id"), application.ItemInput{Title: req.Title, Content: req.Content, URL: req.URL, CategoryID: req.CategoryID})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, it, "item updated", nil)
}

// DeleteItem DELETE /api/items/:kind/:id
func (h *LibraryHandler) DeleteItem(c *gin.Context) {
	if err := h.Svc.DeleteItem(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "item deleted", nil)
}

// Sharing.

// Share POST /api/shares {kind, item_id, username}
// Empty username shares with all users.
func (h *LibraryHandler) Share(c *gin.Context) {
	var req struct {
		Kind     string `json:"kind" binding:"required"`
		ItemID   string `json:"item_id" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	sh, err := h.Svc.ShareItem(c.Request.Context(), uid(c), req.Kind, req.ItemID, req.Username)
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sh, "item shared", nil)
}

// Unshare DELETE /api/shares {kind, item_id, username}
func (h *LibraryHandler) Unshare(c *gin.Context) {
	var req struct {
		Kind     string `json:"kind" binding:"required"`
		ItemID   string `json:"item_id" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.UnshareItem(c.Request.Context(), uid(c), req.Kind, req.ItemID, req.Username); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"unshared": true}, "share removed", nil)
}

// ListShares GET /api/shares/:kind/:id
func (h *LibraryHandler) ListShares(c *gin.Context) {
	shares, err := h.Svc.ListShares(c.Request.Context(), uid(c), c.Param("kind"), c.Param("id"))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, shares, "shares", nil)
}

// SharedWithMe GET /api/shared/:kind
func (h *LibraryHandler) SharedWithMe(c *gin.Context) {
	kind := c.Param("kind")
	if kind == "prompt" {
		prompts, err := h.Svc.SharedPrompts(c.Request.Context(), uid(c))
		if err != nil {
			svcError(c, err)
			return
		}
		response.Success(c, http.StatusOK, prompts, "shared prompts", nil)
		return
	}
	items, err := h.Svc.SharedItems(c.Request.Context(), uid(c), kind)
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items, "shared items", nil)
}

// Usage GET /api/usage
func (h *LibraryHandler) Usage(c *gin.Context) {
	usage, err := h.Svc.CurrentUsage(c.Request.Context(), uid(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, usage, "library usage", nil)
}
