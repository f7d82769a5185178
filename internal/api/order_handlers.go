package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/service"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
)

type createOrderRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	OrderDate  string `json:"order_date" validate:"required"`
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

type itemRequest struct {
	ProductID           int64           `json:"product_id"`
	UnitType            models.UnitType `json:"unit_type" validate:"required"`
	QtyUnits            decimal.Decimal `json:"qty_units"`
	DescriptionOverride *string         `json:"description_override" validate:"omitempty,max=300"`
}

func (req itemRequest) input() service.ItemInput {
	return service.ItemInput{
		ProductID:           req.ProductID,
		UnitType:            req.UnitType,
		QtyUnits:            req.QtyUnits,
		DescriptionOverride: req.DescriptionOverride,
	}
}

// dateRange reads the from and to query parameters. A missing to means the
// single day from.
func dateRange(r *http.Request) (models.Date, models.Date, error) {
	query := r.URL.Query()

	from, err := models.ParseDate(query.Get("from"))
	if err != nil {
		return models.Date{}, models.Date{}, apperrors.NewInvalidInputError(service.MsgInvalidDates)
	}

	rawTo := query.Get("to")
	if rawTo == "" {
		return from, from, nil
	}

	to, err := models.ParseDate(rawTo)
	if err != nil || to.Before(from.Time) {
		return models.Date{}, models.Date{}, apperrors.NewInvalidInputError(service.MsgInvalidDates)
	}

	return from, to, nil
}

func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	orders, err := s.orders.ListOrders(r.Context(), from, to)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, orders)
}

func (s *Server) pickListHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	lines, err := s.orders.PickList(r.Context(), from, to)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, lines)
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	date, err := models.ParseDate(req.OrderDate)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, service.MsgInvalidDates)
		return
	}

	order, err := s.orders.CreateOrder(r.Context(), req.CustomerID, date)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, order)
}

func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, order)
}

func (s *Server) deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	res, err := s.orders.DeleteOrder(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, res)
}

func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req orderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.orders.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, order)
}

func (s *Server) addOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req itemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	item, err := s.orders.AddItem(r.Context(), orderID, req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, item)
}

func (s *Server) updateOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req itemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	item, err := s.orders.UpdateItem(r.Context(), orderID, itemID, req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, item)
}

func (s *Server) deleteOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.orders.DeleteItem(r.Context(), orderID, itemID); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{OK: true})
}
