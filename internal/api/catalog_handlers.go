package api

import (
	"net/http"
	"strconv"

	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/internal/service"
)

type customerRequest struct {
	Code     *string `json:"code" validate:"omitempty,max=32"`
	Name     string  `json:"name" validate:"required,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	IsActive *bool   `json:"is_active"`
}

func (req customerRequest) input() service.CustomerInput {
	return service.CustomerInput{
		Code:     req.Code,
		Name:     req.Name,
		Phone:    req.Phone,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
}

type productRequest struct {
	Cod         *string `json:"cod" validate:"omitempty,max=32"`
	Description string  `json:"description" validate:"required,max=300"`
	IsActive    *bool   `json:"is_active"`
}

func (req productRequest) input() service.ProductInput {
	return service.ProductInput{
		Cod:         req.Cod,
		Description: req.Description,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
}

type activeRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// listParams reads the q, include_inactive and limit query parameters
func listParams(r *http.Request) (q string, includeInactive bool, limit int) {
	query := r.URL.Query()
	includeInactive, _ = strconv.ParseBool(query.Get("include_inactive"))
	limit, _ = strconv.Atoi(query.Get("limit"))
	return query.Get("q"), includeInactive, limit
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	q, includeInactive, limit := listParams(r)

	customers, err := s.catalog.ListCustomers(r.Context(), repository.CustomerFilter{
		Query:           q,
		IncludeInactive: includeInactive,
		Limit:           limit,
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, customers)
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	c, err := s.catalog.CreateCustomer(r.Context(), req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, c)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	c, err := s.catalog.GetCustomer(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, c)
}

func (s *Server) updateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req customerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	c, err := s.catalog.UpdateCustomer(r.Context(), id, req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, c)
}

func (s *Server) setCustomerActiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req activeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.catalog.SetCustomerActive(r.Context(), id, *req.IsActive); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{OK: true})
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q, includeInactive, limit := listParams(r)

	products, err := s.catalog.ListProducts(r.Context(), repository.ProductFilter{
		Query:           q,
		IncludeInactive: includeInactive,
		Limit:           limit,
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, products)
}

func (s *Server) searchProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, products)
}

func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	p, err := s.catalog.CreateProduct(r.Context(), req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, p)
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	p, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, p)
}

func (s *Server) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	p, err := s.catalog.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, p)
}

func (s *Server) setProductActiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req activeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.catalog.SetProductActive(r.Context(), id, *req.IsActive); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{OK: true})
}
