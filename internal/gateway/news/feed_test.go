package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitlesShapes(t *testing.T) {
	assert.Equal(t, []string{"【市场新闻】a", "【市场新闻】b"},
		ExtractTitles([]byte(`{"data":[{"title":"a"},{"title":" "},{"title":"b"}]}`), 5))
	assert.Equal(t, []string{"【市场新闻】腾讯大模型取得突破"},
		ExtractTitles([]byte(`[{"新闻标题":"腾讯大模型取得突破"}]`), 5))
	assert.Len(t, ExtractTitles([]byte(`{"items":[{"title":"1"},{"title":"2"},{"title":"3"}]}`), 2), 2)
	assert.Nil(t, ExtractTitles([]byte(`not json`), 5))
	assert.Nil(t, ExtractTitles([]byte(`{"data":[]}`), 5))
}

func TestFeedHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "00700", r.URL.Query().Get("symbol"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data":[{"title":"t1"},{"title":"t2"},{"title":"t3"},{"title":"t4"},{"title":"t5"},{"title":"t6"}]}`))
	}))
	defer srv.Close()

	f := NewFeed(srv.URL+"/news", 0, time.Second, nil)
	got, err := f.Headlines(context.Background(), "00700")
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxItems)
	assert.Equal(t, "【市场新闻】t1", got[0])
}

func TestFeedPlaceholderAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stock/09988/news" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFeed(srv.URL+"/stock/{symbol}/news", 3, time.Second, nil)
	got, err := f.Headlines(context.Background(), "09988")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewFeed(srv.URL+"/down", 3, time.Second, nil).Headlines(context.Background(), "09988")
	assert.Error(t, err)
}
