package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/ledger"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// LotHandler serves read-only lot views.
type LotHandler struct {
	store  repository.Store
	ledger *ledger.Ledger
}

func NewLotHandler(store repository.Store, l *ledger.Ledger) *LotHandler {
	return &LotHandler{store: store, ledger: l}
}

type lotResponse struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	Capacity      int    `json:"capacity"`
	ReservedCount int    `json:"reserved_count"`
	Available     int    `json:"available"`
	EVSlots       int    `json:"ev_slots"`
}

// List handles GET /v1/lots.
func (h *LotHandler) List(c echo.Context) error {
	lots, err := h.store.ListLots(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]lotResponse, 0, len(lots))
	for _, l := range lots {
		reserved := l.ReservedCount
		if reserved > l.Capacity {
			reserved = l.Capacity
		}
		out = append(out, lotResponse{
			ID:            l.ID,
			Name:          l.Name,
			Location:      l.Location,
			Capacity:      l.Capacity,
			ReservedCount: reserved,
			Available:     l.Available(),
			EVSlots:       l.EVSlots,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Availability handles GET /v1/lots/:id/availability. The answer is
// advisory; creation re-checks under the lot lock.
func (h *LotHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid lot id")
	}
	a := h.ledger.CheckAvailability(c.Request().Context(), id)
	if a.Reason == ledger.ReasonNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lot_not_found", "message": "Parking lot not found"})
	}
	return c.JSON(http.StatusOK, a)
}
