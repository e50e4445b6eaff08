package skip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetSkipTimes(t *testing.T) {
	t.Run("maps op and ed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/52991/3", r.URL.Path)
			assert.Equal(t, []string{"op", "ed"}, r.URL.Query()["types"])
			_, _ = w.Write([]byte(`{"found": true, "results": [
				{"interval": {"start_time": 85.5, "end_time": 175.5}, "skip_type": "op"},
				{"interval": {"start_time": 1330, "end_time": 1420}, "skip_type": "ed"}
			]}`))
		}))
		defer server.Close()

		times, err := NewClient(server.URL, nil, nil).GetSkipTimes(context.Background(), 52991, 3)
		require.NoError(t, err)
		require.NotNil(t, times)
		require.NotNil(t, times.Intro)
		require.NotNil(t, times.Outro)
		assert.Equal(t, 85.5, times.Intro.Start)
		assert.Equal(t, 1420.0, times.Outro.End)
	})

	t.Run("not found is nil", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found": false, "results": []}`))
		}))
		defer server.Close()

		times, err := NewClient(server.URL, nil, nil).GetSkipTimes(context.Background(), 1, 1)
		assert.NoError(t, err)
		assert.Nil(t, times)
	})

	t.Run("server failure degrades to nil", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		times, err := NewClient(server.URL, nil, nil).GetSkipTimes(context.Background(), 1, 1)
		assert.NoError(t, err)
		assert.Nil(t, times)
	})

	t.Run("invalid ids skip the request", func(t *testing.T) {
		times, err := NewClient("http://127.0.0.1:1", nil, nil).GetSkipTimes(context.Background(), 0, 1)
		assert.NoError(t, err)
		assert.Nil(t, times)
	})
}
