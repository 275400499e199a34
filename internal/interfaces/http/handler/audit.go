package handler

import (
	"context"

	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditReader lists the audit trail of one entity
type AuditReader interface {
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.Entry, error)
}

// auditEntityTypes are the entity types the services record
var auditEntityTypes = map[string]bool{
	"invoice":        true,
	"payment":        true,
	"sales_return":   true,
	"purchase_order": true,
	"stock":          true,
}

// AuditHandler exposes the audit trail
type AuditHandler struct {
	BaseHandler
	entries AuditReader
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(entries AuditReader) *AuditHandler {
	return &AuditHandler{entries: entries}
}

// Routes returns the audit route group
func (h *AuditHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("audit", "/audit").
		GET("/:entity_type/:id", h.List)
}

// List godoc
// @ID           listAuditEntries
// @Summary      Audit trail of an entity
// @Description  Lists confirmations, cancellations, credit overrides, allocations and stock adjustments recorded for the entity, oldest first.
// @Tags         audit
// @Produce      json
// @Param        entity_type path string true "Entity type" Enums(invoice, payment, sales_return, purchase_order, stock)
// @Param        id path string true "Entity ID" format(uuid)
// @Success      200 {object} APIResponse[[]audit.Entry]
// @Failure      400 {object} ErrorResponse
// @Router       /audit/{entity_type}/{id} [get]
func (h *AuditHandler) List(c *gin.Context) {
	entityType := c.Param("entity_type")
	if !auditEntityTypes[entityType] {
		h.BadRequest(c, "Unknown entity type "+entityType)
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.entries.FindByEntity(c.Request.Context(), entityType, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
