// README: Back-office handlers — clients, tariffs, despatch settings, fraud flags.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rebeca/internal/modules/admin"
	"rebeca/internal/modules/pricing"
)

type AdminHandler struct {
	admin *admin.Service
}

func NewAdminHandler(adminSvc *admin.Service) *AdminHandler {
	return &AdminHandler{admin: adminSvc}
}

type registerClientReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *AdminHandler) RegisterClient(c *gin.Context) {
	var req registerClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.admin.RegisterClient(c.Request.Context(), admin.RegisterClientCommand{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client_id": id})
}

func (h *AdminHandler) ListClients(c *gin.Context) {
	clients, err := h.admin.ListClients(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

type despatchSettingsReq struct {
	Mode                string `json:"mode"`
	AcceptWindowSeconds int    `json:"accept_window_seconds"`
	MaxAttempts         int    `json:"max_attempts"`
}

func (h *AdminHandler) ConfigureDespatch(c *gin.Context) {
	var req despatchSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	set, err := h.admin.ConfigureDespatch(req.Mode, req.AcceptWindowSeconds, req.MaxAttempts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":                  set.Mode,
		"accept_window_seconds": int(set.AcceptWindow.Seconds()),
		"max_attempts":          set.MaxAttempts,
	})
}

func (h *AdminHandler) DespatchStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.DespatchStats())
}

type pricingRuleReq struct {
	Category        string  `json:"category"`
	BaseFare        int64   `json:"base_fare"`
	PerKm           int64   `json:"per_km"`
	PerMin          int64   `json:"per_min"`
	MinFare         int64   `json:"min_fare"`
	NightMultiplier float64 `json:"night_multiplier"`
	Currency        string  `json:"currency"`
}

func (h *AdminHandler) SetPricingRule(c *gin.Context) {
	var req pricingRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.admin.SetPricingRule(c.Request.Context(), pricing.Rule{
		Category:        req.Category,
		BaseFare:        req.BaseFare,
		PerKm:           req.PerKm,
		PerMin:          req.PerMin,
		MinFare:         req.MinFare,
		NightMultiplier: req.NightMultiplier,
		Currency:        req.Currency,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Category})
}

func (h *AdminHandler) ListPricingRules(c *gin.Context) {
	rules, err := h.admin.PricingRules(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *AdminHandler) FraudFlags(c *gin.Context) {
	flags, err := h.admin.FraudFlags(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

func (h *AdminHandler) ScanFraud(c *gin.Context) {
	flagged, err := h.admin.ScanFraud(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}
