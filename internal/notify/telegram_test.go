package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTelegramNotify(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("text") != "[ Golden Cross Signals ]\nKRW-BTC: Buy signal at 1" {
			t.Errorf("form = %v", r.PostForm)
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "TOKEN", "42")
	tg.delay = time.Millisecond
	if err := tg.Notify(context.Background(), "[ Golden Cross Signals ]\nKRW-BTC: Buy signal at 1"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestTelegramPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "TOKEN", "42")
	tg.delay = time.Millisecond
	if err := tg.Notify(context.Background(), "x"); err == nil {
		t.Error("Notify succeeded on 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	if err := NewTelegram(srv.URL, "", "").Notify(context.Background(), "x"); err == nil {
		t.Error("Notify succeeded without credentials")
	}
}
