package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ReservationHandler exposes the reservation transaction manager. All
// routes run behind JWTAuth; the caller comes from the token.
type ReservationHandler struct {
	svc *service.ReservationService
}

// NewReservationHandler panics on a nil service.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

type createReservationRequest struct {
	LotID     uint64    `json:"lot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type reservationResponse struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	LotID     uint64    `json:"lot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Price     string    `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toReservationResponse(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		LotID:     r.LotID,
		StartTime: r.StartTime.UTC(),
		EndTime:   r.EndTime.UTC(),
		Price:     r.Price.StringFixed(2),
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type paymentResponse struct {
	ID          uint64    `json:"id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	Reference   string    `json:"reference"`
	PaymentDate time.Time `json:"payment_date"`
}

// Create handles POST /v1/reservations. Body:
// {"lot_id": 1, "start_time": RFC3339, "end_time": RFC3339}.
func (h *ReservationHandler) Create(c echo.Context) error {
	p, err := middleware.Principal(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.LotID == 0 {
		return badRequest(c, "lot_id is required")
	}
	if body.StartTime.IsZero() || body.EndTime.IsZero() {
		return badRequest(c, "start_time and end_time are required")
	}
	r, err := h.svc.CreateReservation(c.Request().Context(), p.UserID, body.LotID, body.StartTime, body.EndTime)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	p, err := middleware.Principal(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.svc.CancelReservation(c.Request().Context(), id, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        res.Message,
		"reservation_id": res.ReservationID,
		"refund_tier":    res.RefundTier,
		"refund_amount":  res.RefundAmount.StringFixed(2),
	})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	p, err := middleware.Principal(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.svc.GetReservation(c.Request().Context(), id, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// List handles GET /v1/reservations. Admins may filter with ?user_id=.
func (h *ReservationHandler) List(c echo.Context) error {
	p, err := middleware.Principal(c)
	if err != nil {
		return unauthorized(c)
	}
	var userID *uint64
	if v := c.QueryParam("user_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		userID = &n
	}
	rs, err := h.svc.ListReservations(c.Request().Context(), p, userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]reservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Payments handles GET /v1/reservations/:id/payments.
func (h *ReservationHandler) Payments(c echo.Context) error {
	p, err := middleware.Principal(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ps, err := h.svc.ListPayments(c.Request().Context(), id, p)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]paymentResponse, 0, len(ps))
	for _, pm := range ps {
		out = append(out, paymentResponse{
			ID:          pm.ID,
			Kind:        pm.Kind,
			Amount:      pm.Amount.StringFixed(2),
			Method:      pm.Method,
			Status:      pm.Status,
			Reference:   pm.Reference,
			PaymentDate: pm.PaymentDate.UTC(),
		})
	}
	return c.JSON(http.StatusOK, out)
}
