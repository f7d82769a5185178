package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/internal/service"
)

type materializeRequest struct {
	OrderDate string `json:"order_date"`
}

type materializeResponse struct {
	OK      bool `json:"ok"`
	Created int  `json:"created"`
	Skipped int  `json:"skipped"`
}

// materializeRecurringHandler creates the recurring orders due on order_date.
// A missing or malformed body is reported like a malformed date.
func (s *Server) materializeRecurringHandler(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		req.OrderDate = ""
	}

	res, err := s.materializer.MaterializeDate(r.Context(), req.OrderDate)
	if err != nil {
		if errors.Is(err, recurring.ErrInvalidDateFormat) {
			s.respondWithError(w, http.StatusBadRequest, recurring.ErrInvalidDateFormat.Error())
			return
		}
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, materializeResponse{
		OK:      true,
		Created: res.Created,
		Skipped: res.Skipped,
	})
}

type deleteOrderRequest struct {
	ID int64 `json:"id"`
}

type cleanupRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=range all"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (req cleanupRequest) scope() service.CleanupScope {
	return service.CleanupScope{Mode: req.Mode, From: req.From, To: req.To}
}

type previewResponse struct {
	OK     bool  `json:"ok"`
	Orders int64 `json:"orders"`
	Items  int64 `json:"items"`
}

type deletedResponse struct {
	OK            bool  `json:"ok"`
	DeletedOrders int64 `json:"deleted_orders"`
	DeletedItems  int64 `json:"deleted_items"`
}

func (s *Server) adminDeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req deleteOrderRequest
	if err := decodeJSONBody(r, &req); err != nil || req.ID <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "Missing id")
		return
	}

	res, err := s.orders.DeleteOrder(r.Context(), req.ID)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, deletedResponse{
		OK:            true,
		DeletedOrders: res.Orders,
		DeletedItems:  res.Items,
	})
}

func (s *Server) deleteOrdersPreviewHandler(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	res, err := s.cleanup.Preview(r.Context(), req.scope())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, previewResponse{OK: true, Orders: res.Orders, Items: res.Items})
}

func (s *Server) deleteOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	res, err := s.cleanup.Delete(r.Context(), req.scope())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, deletedResponse{
		OK:            true,
		DeletedOrders: res.Orders,
		DeletedItems:  res.Items,
	})
}
