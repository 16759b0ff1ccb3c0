package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/service/booking"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	service booking.UseCase
}

type createBookingRequest struct {
	PropertyID      string `json:"property_id"`
	CheckInDate     string `json:"check_in_date"`
	CheckOutDate    string `json:"check_out_date"`
	Adults          int    `json:"adults"`
	Children        int    `json:"children"`
	Infants         int    `json:"infants"`
	SpecialRequests string `json:"special_requests"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type bookingResponse struct {
	ID                 string `json:"id"`
	PropertyID         string `json:"property_id"`
	GuestID            string `json:"guest_id"`
	HostID             string `json:"host_id"`
	CheckInDate        string `json:"check_in_date"`
	CheckOutDate       string `json:"check_out_date"`
	NumNights          int    `json:"num_nights"`
	NumGuests          int    `json:"num_guests"`
	BasePricePerNight  int64  `json:"base_price_per_night"`
	TotalNightsCost    int64  `json:"total_nights_cost"`
	CleaningFee        int64  `json:"cleaning_fee"`
	PlatformFee        int64  `json:"platform_fee"`
	TotalPrice         int64  `json:"total_price"`
	Currency           string `json:"currency"`
	Status             string `json:"status"`
	PaymentStatus      string `json:"payment_status"`
	CancellationPolicy string `json:"cancellation_policy"`
	RefundAmount       int64  `json:"refund_amount,omitempty"`
	ExpiresAt          string `json:"expires_at,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func NewBookingHandler(service booking.UseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/mine", h.listMine)
	router.GET("/:id", h.get)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/:id/checkin", h.checkIn)
	router.POST("/:id/checkout", h.checkOut)
	router.POST("/:id/no-show", h.markNoShow)
}

func (h *BookingHandler) create(c *gin.Context) {
	guestID, ok := requesterID(c)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property_id"})
		return
	}
	checkIn, err := time.Parse(dateLayout, req.CheckInDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_in_date must be YYYY-MM-DD"})
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOutDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_out_date must be YYYY-MM-DD"})
		return
	}

	created, err := h.service.Create(c.Request.Context(), booking.CreateInput{
		PropertyID:      propertyID,
		GuestID:         guestID,
		CheckInDate:     checkIn,
		CheckOutDate:    checkOut,
		Adults:          req.Adults,
		Children:        req.Children,
		Infants:         req.Infants,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	requester, ok := requesterID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	found, err := h.service.Get(c.Request.Context(), id, requester)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) listMine(c *gin.Context) {
	guestID, ok := requesterID(c)
	if !ok {
		return
	}

	bookings, err := h.service.ListMine(c.Request.Context(), guestID, c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	requester, ok := requesterID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	cancelled, err := h.service.Cancel(c.Request.Context(), id, requester, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) checkIn(c *gin.Context) {
	h.hostTransition(c, h.service.CheckIn)
}

func (h *BookingHandler) checkOut(c *gin.Context) {
	h.hostTransition(c, h.service.CheckOut)
}

func (h *BookingHandler) markNoShow(c *gin.Context) {
	h.hostTransition(c, h.service.MarkNoShow)
}

func (h *BookingHandler) hostTransition(c *gin.Context, fn func(ctx context.Context, id, requester uuid.UUID) (*domain.Booking, error)) {
	requester, ok := requesterID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	updated, err := fn(c.Request.Context(), id, requester)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                 b.ID.String(),
		PropertyID:         b.PropertyID.String(),
		GuestID:            b.GuestID.String(),
		HostID:             b.HostID.String(),
		CheckInDate:        b.CheckInDate.Format(dateLayout),
		CheckOutDate:       b.CheckOutDate.Format(dateLayout),
		NumNights:          b.NumNights,
		NumGuests:          b.NumGuests,
		BasePricePerNight:  b.BasePricePerNight,
		TotalNightsCost:    b.TotalNightsCost,
		CleaningFee:        b.CleaningFee,
		PlatformFee:        b.PlatformFee,
		TotalPrice:         b.TotalPrice,
		Currency:           b.Currency,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationPolicy: string(b.CancellationPolicy),
		RefundAmount:       b.RefundAmount,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
	}
	if b.ExpiresAt != nil {
		resp.ExpiresAt = b.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
