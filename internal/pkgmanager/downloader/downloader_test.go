// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_WaitForAllRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload:" + r.URL.Path))
	}))
	defer srv.Close()

	p := NewPool()
	p.Submit(Request{Name: "a", URL: srv.URL + "/a"})
	p.Submit(Request{Name: "b", URL: srv.URL + "/b"})

	results := p.WaitForAllRequests(context.Background())
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Contains(t, string(r.Body), "payload:")
	}
}

func TestPool_EmptyBatchReturnsNil(t *testing.T) {
	p := NewPool()
	results := p.WaitForAllRequests(context.Background())
	assert.Nil(t, results)
}

func TestPool_ResultCarriesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	p := NewPool()
	p.Submit(Request{Name: "a", URL: srv.URL})

	results := p.WaitForAllRequests(context.Background())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "application/zip", results[0].ContentType)
}

func TestPool_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPool()
	p.MaxRetries = 1
	p.Submit(Request{Name: "missing", URL: srv.URL})

	results := p.WaitForAllRequests(context.Background())
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
