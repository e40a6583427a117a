package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"golden-seed/app"
	"golden-seed/models"
	"golden-seed/repository"
	"golden-seed/services"
)

// respondOK flattens result into the response body next to the status field.
func respondOK(c *gin.Context, result any) {
	body := gin.H{}
	if raw, err := json.Marshal(result); err == nil {
		_ = json.Unmarshal(raw, &body)
	}
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	var upstream *services.UpstreamError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, services.ErrProposalNotFound):
		status, code = http.StatusNotFound, "proposal_not_found"
	case errors.Is(err, services.ErrSeedNotFound):
		status, code = http.StatusNotFound, "seed_not_found"
	case errors.Is(err, services.ErrAlreadyDecided):
		status, code = http.StatusConflict, "already_decided"
	case errors.Is(err, services.ErrSeedFinal):
		status, code = http.StatusConflict, "seed_final"
	case errors.As(err, &upstream):
		status, code = http.StatusBadGateway, "upstream_unavailable"
	}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"status": "error", "error": code, "detail": err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_input", "detail": detail})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

// setupGoldenRoutes registers the pipeline stages. Every stage call is
// synchronous and returns its aggregate result.
func setupGoldenRoutes(router *gin.Engine, a *app.App) {
	rg := router.Group("/golden")
	log := a.Logger

	rg.POST("/run-candidates", func(c *gin.Context) {
		var req struct {
			CancerType      string   `json:"cancerType"`
			CancerTypeSnake string   `json:"cancer_type"`
			Targets         []string `json:"targets"`
			TargetList      []string `json:"target_list"`
			Limit           int      `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		targets := req.Targets
		if len(targets) == 0 {
			targets = req.TargetList
		}
		res, err := a.Collector.Run(c.Request.Context(), services.CollectRequest{
			Indication: firstNonEmpty(req.CancerType, req.CancerTypeSnake),
			Targets:    targets,
			Limit:      req.Limit,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, res)
	})

	rg.POST("/run-enrich-components", func(c *gin.Context) {
		var req struct {
			CandidateIDs []string `json:"candidate_ids"`
			ProcessAll   bool     `json:"process_all"`
			Limit        int      `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		res, err := a.Extractor.Run(c.Request.Context(), services.ExtractRequest{
			CandidateIDs: req.CandidateIDs,
			ProcessAll:   req.ProcessAll,
			Limit:        req.Limit,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, res)
	})

	rg.POST("/run-enrich-chemistry", func(c *gin.Context) {
		var req struct {
			SeedIDs []string `json:"seed_ids"`
			Mode    string   `json:"mode"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		res, err := a.Chemistry.Run(c.Request.Context(), services.ChemistryRequest{SeedIDs: req.SeedIDs, Mode: req.Mode})
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, res)
	})

	rg.POST("/promote", func(c *gin.Context) {
		var req struct {
			SeedIDs    []string `json:"seed_ids"`
			PromotedBy string   `json:"promoted_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		res, err := a.Promotion.Promote(c.Request.Context(), req.SeedIDs, req.PromotedBy)
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, res)
	})

	setupReviewRoutes(rg, a)
	setupSeedRoutes(rg, a)
	setupTrendRoutes(rg, a)
}

func setupReviewRoutes(rg *gin.RouterGroup, a *app.App) {
	log := a.Logger
	review := rg.Group("/review")

	review.GET("", func(c *gin.Context) {
		items, err := a.Review.List(c.Request.Context(), repository.ProposalFilter{
			Status:    c.DefaultQuery("status", models.StatusPending),
			SeedID:    c.Query("seed_id"),
			QueueType: c.Query("queue_type"),
			Limit:     queryInt(c, "limit", 100),
			Offset:    queryInt(c, "offset", 0),
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "count": len(items), "items": items})
	})

	review.POST("/approve", func(c *gin.Context) {
		var req struct {
			ReviewID   string `json:"review_id"`
			ApprovedBy string `json:"approved_by"`
			Comment    string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		res, err := a.Review.Approve(c.Request.Context(), req.ReviewID, req.ApprovedBy, req.Comment)
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, res)
	})

	review.POST("/reject", func(c *gin.Context) {
		var req struct {
			ReviewID   string `json:"review_id"`
			RejectedBy string `json:"rejected_by"`
			Comment    string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		p, err := a.Review.Reject(c.Request.Context(), req.ReviewID, req.RejectedBy, req.Comment)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "proposal_id": p.ID, "seed_id": p.SeedID})
	})
}

func setupSeedRoutes(rg *gin.RouterGroup, a *app.App) {
	log := a.Logger
	seeds := rg.Group("/seeds")

	seeds.GET("/:id", func(c *gin.Context) {
		seed, err := a.Review.GetSeed(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "seed": seed})
	})

	// Verified fields are never overwritten by an approval.
	seeds.POST("/:id/verify", func(c *gin.Context) {
		var req struct {
			Fields     []string `json:"fields" binding:"required"`
			Verified   *bool    `json:"verified"`
			VerifiedBy string   `json:"verified_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Missing or invalid fields (fields required)")
			return
		}
		verified := true
		if req.Verified != nil {
			verified = *req.Verified
		}
		seed, err := a.Review.SetVerified(c.Request.Context(), c.Param("id"), req.Fields, verified, req.VerifiedBy)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "seed_id": seed.ID, "field_verified": seed.FieldVerified})
	})
}

func setupTrendRoutes(rg *gin.RouterGroup, a *app.App) {
	log := a.Logger

	rg.GET("/trend", func(c *gin.Context) {
		trend, err := a.Trend.Trend(c.Request.Context(), queryInt(c, "limit", 50))
		if err != nil {
			respondError(c, log, err)
			return
		}
		respondOK(c, trend)
	})

	rg.POST("/validation-runs", func(c *gin.Context) {
		var run models.ValidationRun
		if err := c.ShouldBindJSON(&run); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		run.ID = ""
		if err := a.Trend.Record(c.Request.Context(), &run); err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "ok", "run": run})
	})
}
