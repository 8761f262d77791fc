package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_SuccessReturnsParsedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate": 0.0001}`))
	}))
	defer srv.Close()

	c := New("test")
	result, err := c.Get(context.Background(), srv.URL, nil, nil, 0)

	require.NoError(t, err)
	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.0001, m["rate"])
}

func TestGet_RetriesOnTransientFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New("test-retry")
	result, err := c.Get(context.Background(), srv.URL, nil, nil, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	m := result.(map[string]interface{})
	assert.Equal(t, true, m["ok"])
}

func TestGet_EmptyBodyReturnsNilWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New("test-empty")
	result, err := c.Get(context.Background(), srv.URL, nil, nil, 0)

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPost_MarshalsBodyAndSendsHeaders(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"accepted": true}`))
	}))
	defer srv.Close()

	c := New("test-post")
	_, err := c.Post(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, 0)

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
}

func TestBackoffFor_CapsAtMaxAndGrows(t *testing.T) {
	d0 := backoffFor(0)
	d3 := backoffFor(3)
	d10 := backoffFor(10)

	assert.GreaterOrEqual(t, d0, backoffBase)
	assert.Less(t, d0, 2*backoffBase)
	assert.LessOrEqual(t, d10, backoffMax+backoffMax/5)
	assert.Greater(t, d3, d0)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(assertErr{msg: "upstream: http status 404"}))
	assert.False(t, IsNotFound(assertErr{msg: "upstream: http status 500"}))
	assert.False(t, IsNotFound(nil))
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
