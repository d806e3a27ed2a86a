package coach

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComposeFinalText(t *testing.T) {
	got := ComposeFinalText("[ALWAYS]\nProfile:", "how was my week?")
	want := "[ALWAYS]\nProfile:\n\n[USER MESSAGE]\nhow was my week?"
	if got != want {
		t.Fatalf("ComposeFinalText:\ngot  %q\nwant %q", got, want)
	}
	if got := ComposeFinalText("", "hi"); got != "[USER MESSAGE]\nhi" {
		t.Fatalf("empty context: got %q", got)
	}
}

func chatServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
}

func TestChatNormalizesReply(t *testing.T) {
	srv := chatServer(t, `{"replyText":"ease off tomorrow","requestId":"req-1"}`)
	defer srv.Close()

	client := NewClient(srv.URL)
	reply, err := client.Chat(context.Background(), "text")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.ReplyText != "ease off tomorrow" || reply.RequestID != "req-1" {
		t.Fatalf("reply: got %+v", reply)
	}
	if reply.Proposal != nil {
		t.Fatalf("no proposal expected, got %+v", reply.Proposal)
	}
}

func TestChatMissingReplyTextBecomesNoReply(t *testing.T) {
	srv := chatServer(t, `{"requestId":"req-2"}`)
	defer srv.Close()

	reply, err := NewClient(srv.URL).Chat(context.Background(), "text")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.ReplyText != "(no reply)" {
		t.Fatalf("replyText: got %q", reply.ReplyText)
	}
}

func TestChatMalformedBodyIsNotAnError(t *testing.T) {
	srv := chatServer(t, `not json`)
	defer srv.Close()

	reply, err := NewClient(srv.URL).Chat(context.Background(), "text")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.ReplyText != "(no reply)" || reply.Proposal != nil {
		t.Fatalf("normalized reply: got %+v", reply)
	}
}

func TestChatErrorStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Chat(context.Background(), "text"); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestChatSendsMaxOutputChars(t *testing.T) {
	var captured ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"replyText":"ok"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.Chat(context.Background(), "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if captured.Text != "hello" || captured.MaxOutputChars != 1200 {
		t.Fatalf("request payload: got %+v", captured)
	}
}

func TestProposalValidation(t *testing.T) {
	valid := `{"type":"menu","version":1,"cards":[{"id":"c1","date":"2026-03-02","primarySport":"bike","summary":"2x20 sweet spot","detail":"warm up 15m"}]}`
	cases := []struct {
		name     string
		proposal string
		want     bool
	}{
		{"valid", valid, true},
		{"wrong type", `{"type":"plan","version":1,"cards":[{"summary":"s"}]}`, false},
		{"wrong version", `{"type":"menu","version":2,"cards":[{"summary":"s"}]}`, false},
		{"empty cards", `{"type":"menu","version":1,"cards":[]}`, false},
		{"missing summary", `{"type":"menu","version":1,"cards":[{"id":"c1"}]}`, false},
		{"null", `null`, false},
	}
	for _, c := range cases {
		srv := chatServer(t, `{"replyText":"here is a menu","proposal":`+c.proposal+`}`)
		reply, err := NewClient(srv.URL).Chat(context.Background(), "text")
		srv.Close()
		if err != nil {
			t.Fatalf("%s: Chat: %v", c.name, err)
		}
		if got := reply.Proposal != nil; got != c.want {
			t.Fatalf("%s: proposal accepted=%v, want %v", c.name, got, c.want)
		}
	}

	srv := chatServer(t, `{"replyText":"menu","proposal":`+valid+`}`)
	defer srv.Close()
	reply, err := NewClient(srv.URL).Chat(context.Background(), "text")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	card := reply.Proposal.Cards[0]
	if card.ID != "c1" || string(card.PrimarySport) != "bike" || !strings.Contains(card.Summary, "sweet spot") {
		t.Fatalf("card: got %+v", card)
	}
}

func TestHealthAndEcho(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			io.WriteString(w, `{"ok":true,"service":"tri-menu-api","version":"0.1.0","time":"2026-03-01T00:00:00Z"}`)
		case "/v1/echo":
			var req struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode echo: %v", err)
			}
			result := EchoResult{
				Chars: len(req.Text),
				Head:  req.Text,
				HasSections: SectionFlags{
					Always:  strings.Contains(req.Text, "[ALWAYS]"),
					History: strings.Contains(req.Text, "[HISTORY"),
				},
			}
			json.NewEncoder(w).Encode(result)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !status.OK || status.Service != "tri-menu-api" {
		t.Fatalf("health: got %+v", status)
	}

	echo, err := client.Echo(context.Background(), "[ALWAYS]\nProfile:")
	if err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if echo.Chars != len("[ALWAYS]\nProfile:") || !echo.HasSections.Always || echo.HasSections.History {
		t.Fatalf("echo: got %+v", echo)
	}
}
