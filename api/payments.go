package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/repository"
	"github.com/wibonela/boma/internal/service/payment"
)

type PaymentHandler struct {
	service payment.UseCase
}

type mobileMoneyRequest struct {
	PhoneNumber string `json:"phone_number"`
	Provider    string `json:"provider"`
}

type cardPaymentRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type paymentResponse struct {
	ID               string `json:"id"`
	BookingID        string `json:"booking_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Gateway          string `json:"gateway"`
	GatewayReference string `json:"gateway_reference"`
	PaymentMethod    string `json:"payment_method"`
	Status           string `json:"status"`
	FailureReason    string `json:"failure_reason,omitempty"`
	PaidAt           string `json:"paid_at,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func NewPaymentHandler(service payment.UseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/:id/payment", h.initiateMobileMoney)
	router.POST("/:id/payment/card", h.initiateCard)
	router.GET("/:id/payments", h.list)
}

// RegisterWebhooks attaches the gateway callback route. It lives outside the
// authenticated booking group because the caller is the gateway, not a user.
func (h *PaymentHandler) RegisterWebhooks(router *gin.RouterGroup) {
	router.POST("/:gateway", h.webhook)
}

func (h *PaymentHandler) initiateMobileMoney(c *gin.Context) {
	guestID, ok := requesterID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req mobileMoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	initiated, err := h.service.InitiateMobileMoney(c.Request.Context(), payment.MobileMoneyInput{
		BookingID:   bookingID,
		GuestID:     guestID,
		PhoneNumber: req.PhoneNumber,
		Provider:    req.Provider,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toPaymentResponse(initiated))
}

func (h *PaymentHandler) initiateCard(c *gin.Context) {
	guestID, ok := requesterID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req cardPaymentRequest
	_ = c.ShouldBindJSON(&req)

	initiated, checkoutURL, err := h.service.InitiateCard(c.Request.Context(), payment.CardInput{
		BookingID: bookingID,
		GuestID:   guestID,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"payment":      toPaymentResponse(initiated),
		"checkout_url": checkoutURL,
	})
}

func (h *PaymentHandler) list(c *gin.Context) {
	requester, ok := requesterID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	payments, err := h.service.ListForBooking(c.Request.Context(), bookingID, requester)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentResponse(&payments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// webhook acknowledges every delivery with 200, whatever happened inside.
// The service resolves each callback to a structured outcome and logs the
// ones that need manual reconciliation.
func (h *PaymentHandler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	application, err := h.service.HandleWebhook(c.Request.Context(), c.Param("gateway"), payload)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": string(repository.OutcomeError)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(application.Outcome)})
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:               p.ID.String(),
		BookingID:        p.BookingID.String(),
		Amount:           p.Amount,
		Currency:         p.Currency,
		Gateway:          string(p.Gateway),
		GatewayReference: p.GatewayReference,
		PaymentMethod:    string(p.PaymentMethod),
		Status:           string(p.Status),
		FailureReason:    p.FailureReason,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		resp.PaidAt = p.PaidAt.Format(time.RFC3339)
	}
	return resp
}
