package apihandlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tidytabs/internal/app"
	"tidytabs/internal/logging"
	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

// MaxTitlesPerRequest bounds a single categorization request.
const MaxTitlesPerRequest = 500

// FallbackHeader is set to "true" on /generate_tabs responses that carry the
// synthesized fallback group.
const FallbackHeader = "X-TidyTabs-Fallback"

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// TitlesRequest is the body of every categorization endpoint.
type TitlesRequest struct {
	Titles    []string `json:"titles" binding:"required"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// CategoriesResponse maps category to titles.
type CategoriesResponse struct {
	Categories models.ClassificationResult `json:"categories"`
}

// ScoredCategoriesResponse maps category to titles with confidences.
type ScoredCategoriesResponse struct {
	Categories map[string][]models.ScoredTitle `json:"categories"`
	Threshold  float64                         `json:"threshold"`
}

// GenerateRequest is the body of /generate_tabs.
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (h *APIHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "TidyTabs backend is live"})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	a := h.App
	resp := gin.H{
		"status":          "ok",
		"model_loaded":    a.Classifier.Available(),
		"llm_categorizer": a.CategorizationService.LLMEnabled(),
		"generation":      a.CompletionService.Status().String(),
		"generation_mode": a.Generator.Mode(),
		"search":          store.ProviderStatusDisabled.String(),
		"usage_tracking":  a.UsageStore != nil,
	}
	if a.Searcher != nil {
		resp["search"] = a.Searcher.Status().String()
	}
	if a.UsageStore != nil {
		if err := a.UsageStore.Ping(c.Request.Context()); err != nil {
			logging.FromContext(c.Request.Context()).Warnf("Usage store ping failed: %v", err)
			resp["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// bindTitles parses and bounds a TitlesRequest.
func bindTitles(c *gin.Context) (TitlesRequest, bool) {
	var req TitlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return req, false
	}
	if len(req.Titles) > MaxTitlesPerRequest {
		BadRequest(c, fmt.Sprintf("too many titles: %d (max %d)", len(req.Titles), MaxTitlesPerRequest))
		return req, false
	}
	if t := req.Threshold; t != nil && (*t < 0 || *t > 1) {
		BadRequest(c, "threshold must be within [0, 1]")
		return req, false
	}
	return req, true
}

func (h *APIHandler) CategorizeLocalHandler(c *gin.Context) {
	req, ok := bindTitles(c)
	if !ok {
		return
	}
	res := h.App.CategorizationService.CategorizeLocal(c.Request.Context(), req.Titles)
	c.JSON(http.StatusOK, CategoriesResponse{Categories: res})
}

func (h *APIHandler) CategorizeLocalConfidenceHandler(c *gin.Context) {
	req, ok := bindTitles(c)
	if !ok {
		return
	}
	res := h.App.CategorizationService.CategorizeLocalWithConfidence(c.Request.Context(), req.Titles, req.Threshold)
	threshold := h.App.Classifier.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	c.JSON(http.StatusOK, ScoredCategoriesResponse{Categories: res, Threshold: threshold})
}

func (h *APIHandler) CategorizeHandler(c *gin.Context) {
	req, ok := bindTitles(c)
	if !ok {
		return
	}
	res, usedLLM := h.App.CategorizationService.Categorize(c.Request.Context(), req.Titles)
	logging.FromContext(c.Request.Context()).WithFields(log.Fields{
		"titles":   len(req.Titles),
		"used_llm": usedLLM,
	}).Debug("categorize")
	c.JSON(http.StatusOK, CategoriesResponse{Categories: res})
}

func (h *APIHandler) GenerateTabsHandler(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res := h.App.Generator.Generate(c.Request.Context(), req.Prompt)
	if res.Fallback {
		c.Header(FallbackHeader, "true")
	}
	c.JSON(http.StatusOK, res.Group)
}

func (h *APIHandler) ListUsageHandler(c *gin.Context) {
	if h.App.CostService == nil {
		Unavailable(c, "usage tracking is disabled")
		return
	}
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	logs, err := h.App.CostService.ListUsage(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListUsageHandler: failed to list usage: %v", err))
		return
	}
	if logs == nil {
		logs = []*models.AIUsageLog{}
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	if h.App.CostService == nil {
		Unavailable(c, "usage tracking is disabled")
		return
	}
	sum, err := h.App.CostService.GetSummary(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("UsageSummaryHandler: failed to summarize usage: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sum})
}

func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit, offset = 20, 0
	if l := c.Query("limit"); l != "" {
		parsed, perr := strconv.Atoi(l)
		if perr != nil || parsed <= 0 || parsed > 1000 {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
		limit = parsed
	}
	if o := c.Query("offset"); o != "" {
		parsed, perr := strconv.Atoi(o)
		if perr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
		offset = parsed
	}
	return limit, offset, nil
}
