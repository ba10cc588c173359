package awsjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Name string `json:"Name"`
}

type echoResponse struct {
	Greeting string `json:"Greeting"`
}

func TestCall_SetsProtocolHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-amz-json-1.1", r.Header.Get("Content-Type"))
		assert.Equal(t, "Greeter_2020.SayHello", r.Header.Get("X-Amz-Target"))

		var in echoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(echoResponse{Greeting: "hello " + in.Name})
	}))
	defer srv.Close()

	c := New(srv.URL, "Greeter_2020", time.Second)
	var out echoResponse

	err := c.Call(context.Background(), "SayHello", echoRequest{Name: "sam"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "hello sam", out.Greeting)
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"__type":"com.amazon#BadRequestException","message":"bad media"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "Svc", time.Second)

	err := c.Call(context.Background(), "Op", struct{}{}, nil)

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "BadRequestException", apiErr.Type)
	assert.Equal(t, "bad media", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCall_ServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"Greeting":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "Svc", time.Second)
	var out echoResponse

	err := c.Call(context.Background(), "Op", struct{}{}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Greeting)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCall_MaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "Svc", time.Second)
	c.MaxAttempts = 2

	err := c.Call(context.Background(), "Op", struct{}{}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Internal Server Error", apiErr.Type)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
