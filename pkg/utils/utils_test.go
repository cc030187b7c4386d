package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateHash(t *testing.T) {
	sum, err := CalculateHash([]byte("abc"), "sha256")
	require.NoError(t, err)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	sum, err = CalculateHash([]byte("abc"), "md5")
	require.NoError(t, err)
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", sum)

	_, err = CalculateHash([]byte("abc"), "crc32")
	require.Error(t, err)
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(rec, http.StatusNotFound, "nothing here")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Not Found", body["error"])
	require.Equal(t, "nothing here", body["message"])
}

func TestSuccessResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	SuccessResponse(rec, map[string]int{"count": 2})

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"data":{"count":2}}`, rec.Body.String())
}
