// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(types.HTTPConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)

	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr)
}

func TestNewClient_Proxy(t *testing.T) {
	client, err := NewClient(types.HTTPConfig{Proxy: "http://127.0.0.1:7890"})
	require.NoError(t, err)

	tr := client.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "https://arxiv.org/pdf/1.pdf", nil)
	proxyURL, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7890", proxyURL.Host)
}

func TestNewClient_BadProxy(t *testing.T) {
	_, err := NewClient(types.HTTPConfig{Proxy: "://bad"})
	assert.Error(t, err)
}

func TestGet_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paper-digest/test", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := NewClient(types.HTTPConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	resp, err := Get(context.Background(), client, ts.URL+"/start", "paper-digest/test", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGet_NoRetryOnFailure(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := Get(context.Background(), ts.Client(), ts.URL, "", map[string]string{"Accept": "application/pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	client, err := NewClient(types.HTTPConfig{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = Get(context.Background(), client, ts.URL, "", nil)
	assert.Error(t, err)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, th.Wait(ctx))
	require.NoError(t, th.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestThrottle_Cancelled(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, th.Wait(ctx))
}

func TestThrottle_Disabled(t *testing.T) {
	th := NewThrottle(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	var nilThrottle *Throttle
	assert.NoError(t, nilThrottle.Wait(context.Background()))
}
