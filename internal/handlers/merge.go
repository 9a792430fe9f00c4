package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/requestdata"
	"github.com/openmesh-labs/identityhub/internal/services"
)

type MergeHandler struct {
	merges   services.MergeService
	unmerges services.UnmergeService
	noMerges services.NoMergeService
}

func NewMergeHandler(merges services.MergeService, unmerges services.UnmergeService, noMerges services.NoMergeService) *MergeHandler {
	return &MergeHandler{merges: merges, unmerges: unmerges, noMerges: noMerges}
}

type mergeRequest struct {
	SecondaryID uuid.UUID `json:"secondary_id" binding:"required"`
}

// POST /api/entities/:id/merge
func (h *MergeHandler) Merge(c *gin.Context) {
	primaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.merges.Merge(ctx, requestdata.ActorID(ctx), primaryID, req.SecondaryID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	if result.NoOp {
		c.JSON(http.StatusNonAuthoritativeInfo, result)
		return
	}
	RespondOK(c, result)
}

// GET /api/entities/:id/unmerge/preview
func (h *MergeHandler) UnmergePreview(c *gin.Context) {
	primaryID, ref, ok := h.unmergeArgs(c)
	if !ok {
		return
	}
	plan, err := h.unmerges.Preview(c.Request.Context(), primaryID, ref)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, plan)
}

// POST /api/entities/:id/unmerge
//
// The body is the plan a prior preview returned. Executing a plan whose
// entity has drifted since the preview yields a 409.
func (h *MergeHandler) Unmerge(c *gin.Context) {
	primaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	var plan types.UnmergePlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.unmerges.Execute(ctx, requestdata.ActorID(ctx), primaryID, &plan)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/entities/:id/can-revert-merge
func (h *MergeHandler) CanRevertMerge(c *gin.Context) {
	primaryID, ref, ok := h.unmergeArgs(c)
	if !ok {
		return
	}
	canRevert, err := h.unmerges.CanRevert(c.Request.Context(), primaryID, ref)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"can_revert": canRevert})
}

type noMergeRequest struct {
	NoMergeID uuid.UUID `json:"no_merge_id" binding:"required"`
}

// POST /api/entities/:id/no-merge
func (h *MergeHandler) NoMergeAdd(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	var req noMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.noMerges.Add(dbctx.New(ctx), requestdata.ActorID(ctx), entityID, req.NoMergeID); err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"entity_id": entityID, "no_merge_id": req.NoMergeID})
}

// GET /api/entities/:id/no-merge
func (h *MergeHandler) NoMergeList(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	ids, err := h.noMerges.ListForEntity(dbctx.New(c.Request.Context()), entityID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	RespondOK(c, gin.H{"entity_id": entityID, "no_merge_ids": ids})
}

func (h *MergeHandler) unmergeArgs(c *gin.Context) (uuid.UUID, services.IdentityRef, bool) {
	primaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return uuid.Nil, services.IdentityRef{}, false
	}
	ref := services.IdentityRef{
		Platform: c.Query("platform"),
		Type:     c.Query("type"),
		Value:    c.Query("value"),
	}
	if ref.Platform == "" || ref.Value == "" {
		RespondError(c, http.StatusBadRequest, "missing_identity", nil)
		return uuid.Nil, services.IdentityRef{}, false
	}
	return primaryID, ref, true
}
