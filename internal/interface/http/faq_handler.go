package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

// ListFAQs returns entries filtered by category and search text.
func (h *Handler) ListFAQs(c *gin.Context) {
	filter := faq.ListFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", err))
			return
		}
		filter.Limit = limit
	}
	entries, err := h.faqSvc.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"faqs": entries})
}

// GetFAQ returns one entry.
func (h *Handler) GetFAQ(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.faqSvc.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// FAQCategories lists categories with their entry counts.
func (h *Handler) FAQCategories(c *gin.Context) {
	categories, err := h.faqSvc.Categories(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// SearchFAQ ranks entries against a query.
func (h *Handler) SearchFAQ(c *gin.Context) {
	var req faq.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.faqSvc.Search(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SmartFAQ answers frequently asked questions using search + caching strategies.
func (h *Handler) SmartFAQ(c *gin.Context) {
	var req faq.AskRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.faqSvc.Ask(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TrendingFAQ returns the most common search recommendations.
func (h *Handler) TrendingFAQ(c *gin.Context) {
	items, err := h.faqSvc.Trending(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": items})
}

// FAQFeedback records whether an entry helped. Anonymous feedback is accepted.
func (h *Handler) FAQFeedback(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req faq.FeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	var userID int64
	if claims, ok := getClaims(c); ok {
		userID = claims.UserID
	}
	entry, err := h.faqSvc.Feedback(c.Request.Context(), id, userID, req)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback recorded", "faq": entry})
}

// CreateFAQ adds an entry.
func (h *Handler) CreateFAQ(c *gin.Context) {
	var in faq.EntryInput
	if !bindJSON(c, &in) {
		return
	}
	entry, err := h.faqSvc.Create(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateFAQ replaces an entry.
func (h *Handler) UpdateFAQ(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in faq.EntryInput
	if !bindJSON(c, &in) {
		return
	}
	entry, err := h.faqSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteFAQ removes an entry.
func (h *Handler) DeleteFAQ(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.faqSvc.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateFAQCategory adds a category.
func (h *Handler) CreateFAQCategory(c *gin.Context) {
	var in faq.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	category, err := h.faqSvc.CreateCategory(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusCreated, category)
}
