package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	barcodeapp "github.com/retailops/backend/internal/application/barcode"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/interfaces/http/middleware"
	"github.com/retailops/backend/internal/interfaces/http/router"
)

// BarcodeHandler serves barcode generation, validation and registry endpoints
type BarcodeHandler struct {
	BaseHandler
	generator *barcodeapp.Generator
	registry  *barcodeapp.RegistryService
	scanner   *barcodeapp.ScanResolver
	validator *barcode.Validator
}

// NewBarcodeHandler creates a new BarcodeHandler
func NewBarcodeHandler(
	generator *barcodeapp.Generator,
	registry *barcodeapp.RegistryService,
	scanner *barcodeapp.ScanResolver,
	validator *barcode.Validator,
) *BarcodeHandler {
	return &BarcodeHandler{
		generator: generator,
		registry:  registry,
		scanner:   scanner,
		validator: validator,
	}
}

// BarcodeRoutes creates the route group for barcode endpoints
func BarcodeRoutes(h *BarcodeHandler) *router.DomainGroup {
	group := router.NewDomainGroup("barcode", "/barcodes")

	// Generation
	group.POST("/units/:entityId", h.GenerateUnitCode)
	group.POST("/products/:productId", h.GenerateProductCode)
	group.POST("/bulk", h.GenerateBulk)

	// Validation and scanning never touch the counters
	group.POST("/validate", h.Validate)
	group.GET("/parse", h.Parse)
	group.POST("/scan", h.Scan)

	// Registry
	group.GET("/codes", h.ListCodes)
	group.POST("/codes", h.ClaimCode)
	group.GET("/codes/:code", h.GetCode)
	group.GET("/codes/:code/availability", h.CheckAvailability)
	group.DELETE("/codes/:code", h.RetireCode)

	group.GET("/config", h.GetConfig)

	return group
}

// GenerateUnitCode returns the active code of a product unit, minting one on first call
func (h *BarcodeHandler) GenerateUnitCode(c *gin.Context) {
	h.generate(c, barcode.TypeUnit, c.Param("entityId"))
}

// GenerateProductCode returns the active code of a product, minting one on first call
func (h *BarcodeHandler) GenerateProductCode(c *gin.Context) {
	h.generate(c, barcode.TypeProduct, c.Param("productId"))
}

func (h *BarcodeHandler) generate(c *gin.Context, t barcode.BarcodeType, ownerID string) {
	ownerID = strings.TrimSpace(ownerID)
	if err := barcode.ValidateOwner(t.OwnerEntityType(), ownerID); err != nil {
		h.HandleError(c, err)
		return
	}

	code, err := h.generator.Generate(c.Request.Context(), t, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, barcodeapp.GenerateResponse{
		Code:        code,
		BarcodeType: t.String(),
		OwnerID:     ownerID,
		Format:      string(barcode.DetectFormat(code)),
	})
}

// GenerateBulk generates codes for many owners of one type.
// Per-owner failures are reported in the results; the request itself succeeds.
func (h *BarcodeHandler) GenerateBulk(c *gin.Context) {
	var req BulkGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	t, err := barcode.ParseBarcodeType(req.Type)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	results, err := h.generator.GenerateBulk(c.Request.Context(), t, req.EntityIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := BulkGenerateResponse{BarcodeType: t.String(), Results: results}
	for _, r := range results {
		if r.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	h.Success(c, resp)
}

// Validate checks a code against the configured grammar.
// Without a format the format is detected from the code's shape.
func (h *BarcodeHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if req.Format == "" {
		h.Success(c, h.validator.Validate(req.Code))
		return
	}
	format, err := barcode.ParseFormat(req.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.validator.ValidateFormat(req.Code, format))
}

// Parse decomposes a structured code into prefix, type and counter
func (h *BarcodeHandler) Parse(c *gin.Context) {
	var q ParseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	h.Success(c, h.validator.ParseStructured(q.Code))
}

// Scan resolves raw scanner input to a registry entry
func (h *BarcodeHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.scanner.Resolve(c.Request.Context(), req.Raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListCodes lists registry entries with pagination
func (h *BarcodeHandler) ListCodes(c *gin.Context) {
	var q ListCodesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := barcode.RegistryFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  "created_at",
			OrderDir: q.OrderDir,
		},
		BarcodeType:     barcode.BarcodeType(strings.ToLower(q.Type)),
		OwnerEntityType: q.OwnerEntityType,
		OwnerEntityID:   q.OwnerEntityID,
		IncludeRetired:  q.IncludeRetired,
	}

	entries, total, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := q.Page, q.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, barcodeapp.ToRegistryEntryResponses(entries), total, page, pageSize)
}

// ClaimCode registers an externally issued code for an owner.
// A code that is already taken, or an owner that already holds one, is a 409.
func (h *BarcodeHandler) ClaimCode(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	t, err := barcode.ParseBarcodeType(req.Type)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entry, err := h.registry.Claim(c.Request.Context(), req.Code, t, req.OwnerEntityType, req.OwnerEntityID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, barcodeapp.ToRegistryEntryResponse(entry))
}

// GetCode returns the registry entry for a code, active or retired
func (h *BarcodeHandler) GetCode(c *gin.Context) {
	entry, err := h.registry.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, barcodeapp.ToRegistryEntryResponse(entry))
}

// CheckAvailability reports whether a code has never been issued
func (h *BarcodeHandler) CheckAvailability(c *gin.Context) {
	code := c.Param("code")
	available, err := h.registry.CheckAvailable(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AvailabilityResponse{Code: strings.TrimSpace(code), Available: available})
}

// RetireCode retires a code. The code stays taken; its owner may be issued a new one.
func (h *BarcodeHandler) RetireCode(c *gin.Context) {
	entry, err := h.registry.Retire(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, barcodeapp.ToRegistryEntryResponse(entry))
}

// GetConfig returns the current prefix, format and live counter values
func (h *BarcodeHandler) GetConfig(c *gin.Context) {
	cfg, err := h.generator.CurrentConfig(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}
