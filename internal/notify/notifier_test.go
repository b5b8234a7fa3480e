package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"number-stock-alerts/internal/marketplace"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleNote(purchased int) Notification {
	price := decimal.NewFromFloat(0.19)
	note := Notification{
		Service:   "foodora",
		Country:   36,
		Count:     5,
		Price:     &price,
		CheckedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < purchased; i++ {
		note.Purchased = append(note.Purchased, marketplace.PurchaseRecord{
			TransactionID: "100",
			Number:        "+36301234567",
			Service:       "foodora",
			Country:       36,
			Price:         &price,
		})
	}
	return note
}

func TestRenderSubject(t *testing.T) {
	if got := renderSubject(sampleNote(0)); !strings.Contains(got, "available") || !strings.Contains(got, "Foodora") {
		t.Fatalf("availability subject 不正确: %q", got)
	}
	if got := renderSubject(sampleNote(2)); !strings.Contains(got, "Purchased 2") {
		t.Fatalf("purchase subject 不正确: %q", got)
	}
}

func TestRenderTextIncludesPurchases(t *testing.T) {
	text := renderText(sampleNote(1))
	for _, want := range []string{"Count: 5", "$0.19", "+36301234567", "tzid=100"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text 应包含 %q:\n%s", want, text)
		}
	}
}

func TestRenderTextUnknownPrice(t *testing.T) {
	note := sampleNote(0)
	note.Price = nil
	if !strings.Contains(renderText(note), "Price: N/A") {
		t.Fatal("unknown price should render as N/A")
	}
}

func TestRenderHTMLIncludesPurchaseTable(t *testing.T) {
	html := renderHTML(sampleNote(1))
	if !strings.Contains(html, "<table") || !strings.Contains(html, "+36301234567") {
		t.Fatalf("HTML 应包含购买表格:\n%s", html)
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote(0)); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] == "" {
		t.Fatalf("text 应非空")
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote(0)); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestEmailNotifierInvalidAddress(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{
		Host: "localhost",
		Port: 587,
		From: "not-an-address",
		To:   "dest@example.com",
	}, testLogger())

	if err := notifier.Notify(context.Background(), sampleNote(0)); err == nil {
		t.Fatal("非法发件地址应报错")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(ctx context.Context, note Notification) error {
	s.calls++
	return s.err
}

func TestFanoutPartialFailureIsSuccess(t *testing.T) {
	bad := &stubNotifier{err: errors.New("boom")}
	good := &stubNotifier{}

	f := NewFanout(testLogger(), bad, good)
	if err := f.Notify(context.Background(), sampleNote(0)); err != nil {
		t.Fatalf("一个通道成功时整体应成功: %v", err)
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Fatalf("every channel should be attempted: bad=%d good=%d", bad.calls, good.calls)
	}
}

func TestFanoutAllFail(t *testing.T) {
	f := NewFanout(testLogger(), &stubNotifier{err: errors.New("a")}, &stubNotifier{err: errors.New("b")})
	if err := f.Notify(context.Background(), sampleNote(0)); err == nil {
		t.Fatal("所有通道失败时应报错")
	}
}
