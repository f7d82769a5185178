package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// ApiResponse is the envelope of every CRUD response
type ApiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSONBody decodes the request body into dst and validates it
func decodeJSONBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidInputError("Corpo della richiesta vuoto")
		}
		return apperrors.NewInvalidInputError(fmt.Sprintf("JSON non valido: %v", err))
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.NewInvalidInputError(fmt.Sprintf("Campo non valido: %s", verrs[0].Field()))
		}
		return apperrors.NewInvalidInputError(err.Error())
	}

	return nil
}

// pathID parses a positive integer route variable
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s non valido", name))
	}
	return id, nil
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithData wraps data in a successful envelope
func (s *Server) respondWithData(w http.ResponseWriter, code int, data interface{}) {
	s.respondWithJSON(w, code, ApiResponse{OK: true, Data: data})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{OK: false, Error: message})
}

// respondWithAppError maps err to its status. Errors carrying no status are
// logged and reported as 500 with their message.
func (s *Server) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}
	s.respondWithError(w, code, err.Error())
}
