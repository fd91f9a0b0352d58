package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu  sync.Mutex
	got []StructuredMessage
	err error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(ctx context.Context, msg StructuredMessage) error {
	r.mu.Lock()
	r.got = append(r.got, msg)
	r.mu.Unlock()
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func sampleAlert() StructuredMessage {
	return TradeAlert(TradeEvent{
		Symbol: "00700", Action: "SELL_ALL", Reason: "HARD_STOP: price 257.6", Price: 257.6, Volume: 35,
		Source: "tick", At: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
}

func TestTradeAlertRender(t *testing.T) {
	msg := sampleAlert()
	assert.Equal(t, "🔴 【量化信号】00700 执行 SELL_ALL", msg.PlainTitle())
	body := msg.RenderMarkdown()
	assert.Contains(t, body, "- 数量: 35")
	assert.Contains(t, body, "HARD_STOP")
	assert.Contains(t, body, "请及时前往券商APP进行复核下单。")
}

func TestDispatcherDeliversToAllSinksAndSurvivesErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}
	d := NewDispatcher(nil, failing, ok)

	d.Notify(sampleAlert())
	d.Notify(sampleAlert())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, ok.count())

	d.Notify(sampleAlert())
	assert.Equal(t, 2, ok.count(), "notify after close is ignored")
	assert.Equal(t, []string{"recording", "recording"}, d.Sinks())
}

func TestTelegramSend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["chat_id"])
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.APIBase = srv.URL
	tg.RetryWait = time.Millisecond
	require.NoError(t, tg.Send(context.Background(), sampleAlert()))
	assert.EqualValues(t, 2, calls.Load())

	assert.Error(t, NewTelegram("", "").Send(context.Background(), sampleAlert()))
}

func TestServerChan(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/SCT123abc.send"))
		require.NoError(t, r.ParseForm())
		form = map[string]string{"title": r.PostForm.Get("title"), "desp": r.PostForm.Get("desp")}
	}))
	defer srv.Close()

	sc := NewServerChan("SCT123abc", nil)
	sc.APIBase = srv.URL
	require.NoError(t, sc.Send(context.Background(), sampleAlert()))
	assert.Contains(t, form["title"], "00700")
	assert.Contains(t, form["desp"], "HARD_STOP")

	placeholder := NewServerChan("SCTxxxxxxxx", nil)
	assert.False(t, placeholder.Configured())
	assert.NoError(t, placeholder.Send(context.Background(), sampleAlert()))
}
