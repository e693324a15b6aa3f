package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newEndpointHandler() *Endpoint {
	return NewEndpoint(nil)
}

func TestEndpointActivate_MissingID(t *testing.T) {
	h := newEndpointHandler()
	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/endpoints//activate", nil), "user-1")
	r = withChiURLParam(r, "id", "")

	h.Activate(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndpointDeactivate_MissingID(t *testing.T) {
	h := newEndpointHandler()
	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/endpoints//deactivate", nil), "user-1")
	r = withChiURLParam(r, "id", "")

	h.Deactivate(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndpointDelete_MissingID(t *testing.T) {
	h := newEndpointHandler()
	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodDelete, "/endpoints/", nil), "user-1")
	r = withChiURLParam(r, "id", "")

	h.Delete(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
