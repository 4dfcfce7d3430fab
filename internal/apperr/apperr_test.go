package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := Validation(CodeEmptyQuery, "query must not be empty")
	assert.Equal(t, "[EMPTY_QUERY] query must not be empty", err.Error())

	wrapped := Wrap(KindStoreWrite, CodeStoreWrite, "overview write", errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "overview write")
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestWrapNilCause(t *testing.T) {
	var err error = Wrap(KindInternal, CodeInternal, "no cause", nil)
	// Wrap returns a typed nil; callers must treat it as no error.
	ae, _ := err.(*Error)
	assert.Nil(t, ae)
}

func TestUnwrapAndIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamNetwork("dms unreachable", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, New(KindUpstreamNetwork, CodeUpstreamDial, "anything")))

	outer := fmt.Errorf("fetch document: %w", err)
	assert.Equal(t, CodeUpstreamDial, CodeOf(outer))
	assert.Equal(t, KindUpstreamNetwork, KindOf(outer))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation surfaces 400", Validation(CodeEmptyQuery, "empty"), http.StatusBadRequest},
		{"upstream http surfaces 500", UpstreamHTTP(404, "document not found"), http.StatusInternalServerError},
		{"upstream network surfaces 500", UpstreamNetwork("timeout", errors.New("deadline")), http.StatusInternalServerError},
		{"plain error surfaces 500", errors.New("anything"), http.StatusInternalServerError},
		{"store write surfaces 500", StoreWrite("chunk batch", errors.New("down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusOf(tt.err))
		})
	}
}

func TestUpstreamHTTPCarriesStatus(t *testing.T) {
	err := UpstreamHTTP(503, "rms download failed")
	assert.Equal(t, 503, err.Status)
	assert.Contains(t, err.Message, "503")
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("opaque")))
	assert.Equal(t, "", CodeOf(errors.New("opaque")))
}
