package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	contactservice "aegis/internal/contacts/service"
	contactstore "aegis/internal/contacts/store"
	"aegis/internal/platform/middleware"
)

// The contacts handler is tested against the real service over a memory
// store; the validation and roster-limit behavior is part of the contract
// the endpoints expose.
type ContactsHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestContactsHandlerSuite(t *testing.T) {
	suite.Run(t, new(ContactsHandlerSuite))
}

func (s *ContactsHandlerSuite) SetupTest() {
	svc, err := contactservice.New(contactstore.NewMemory(), contactservice.WithMaxContacts(2))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	NewContactsHandler(svc).Register(s.router)
}

func (s *ContactsHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, "user-1")
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ContactsHandlerSuite) addContact(name, phone string) map[string]any {
	w := s.do(http.MethodPost, "/contacts", map[string]string{
		"name":         name,
		"phone":        phone,
		"relationship": "friend",
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *ContactsHandlerSuite) TestAddAndList() {
	s.addContact("Ana", "+1 555-0101")
	s.addContact("Ben", "+1 555-0102")

	w := s.do(http.MethodGet, "/contacts", nil)
	s.Equal(http.StatusOK, w.Code)
	var resp map[string][]map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp["contacts"], 2)
	s.Equal("Ana", resp["contacts"][0]["name"])
	s.Equal("Ben", resp["contacts"][1]["name"])
}

func (s *ContactsHandlerSuite) TestValidationErrors() {
	s.Run("missing name", func() {
		w := s.do(http.MethodPost, "/contacts", map[string]string{
			"phone":        "+1 555-0101",
			"relationship": "friend",
		})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("malformed phone", func() {
		w := s.do(http.MethodPost, "/contacts", map[string]string{
			"name":         "Ana",
			"phone":        "not-a-number!",
			"relationship": "friend",
		})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("roster limit maps to 409", func() {
		s.addContact("Ana", "+1 555-0101")
		s.addContact("Ben", "+1 555-0102")
		w := s.do(http.MethodPost, "/contacts", map[string]string{
			"name":         "Cho",
			"phone":        "+1 555-0103",
			"relationship": "friend",
		})
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *ContactsHandlerSuite) TestUpdateAndRemove() {
	created := s.addContact("Ana", "+1 555-0101")
	contactID := created["id"].(string)

	w := s.do(http.MethodPut, "/contacts/"+contactID, map[string]string{
		"name":         "Ana Maria",
		"phone":        "+1 555-0101",
		"relationship": "sister",
	})
	s.Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("Ana Maria", resp["name"])
	s.Equal("sister", resp["relationship"])

	w = s.do(http.MethodDelete, "/contacts/"+contactID, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/contacts/"+contactID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ContactsHandlerSuite) TestInvalidContactID() {
	w := s.do(http.MethodDelete, "/contacts/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}
