package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "sk_test", time.Second)
}

func TestLookupAttempt(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attempts/123456", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"123456","status":"paid","amount":150.5,"currency":"THB"}`))
	})

	st, err := c.LookupAttempt(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "paid", st.State)
	assert.True(t, st.Succeeded())
	assert.Equal(t, 150.5, st.Amount)
}

func TestLookupAttemptNotFound(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","message":"no such attempt"}`))
	})

	_, err := c.LookupAttempt(context.Background(), "99999")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestLookupAttemptServerError(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"upstream","message":"bank unavailable"}`))
	})

	_, err := c.LookupAttempt(context.Background(), "12345")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAttemptNotFound)
	assert.Contains(t, err.Error(), "bank unavailable")
}

func TestLookupAttemptFillsMissingID(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	})

	st, err := c.LookupAttempt(context.Background(), "55555")
	require.NoError(t, err)
	assert.Equal(t, "55555", st.AttemptID)
	assert.False(t, st.Succeeded())
}

func TestLookupAttemptEmptyID(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := c.LookupAttempt(context.Background(), "  ")
	assert.Error(t, err)
}

func TestSucceeded(t *testing.T) {
	for state, want := range map[string]bool{
		"successful": true,
		"SUCCESS":    true,
		"paid":       true,
		"pending":    false,
		"failed":     false,
		"":           false,
	} {
		assert.Equal(t, want, Status{State: state}.Succeeded(), state)
	}
}
