package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/sms"
)

func TestNew_MissingCredentials(t *testing.T) {
	if _, err := New("", "", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestSend(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC1/Messages.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("To") != "+6591234567" || r.PostForm.Get("From") != "+15550001" || r.PostForm.Get("Body") != "Which gate?" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	p, _ := New("AC1", "tok", "+15550001", WithBaseURL(srv.URL))
	rcpt, err := p.Send(context.Background(), sms.Message{To: "+6591234567", Body: "Which gate?"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rcpt.ID != "SM123" || rcpt.Status != "queued" {
		t.Errorf("receipt = %+v", rcpt)
	}
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	}))
	defer srv.Close()

	p, _ := New("AC1", "tok", "+15550001", WithBaseURL(srv.URL))
	if _, err := p.Send(context.Background(), sms.Message{To: "bad", Body: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSend_RequiresFields(t *testing.T) {
	p, _ := New("AC1", "tok", "+15550001")
	if _, err := p.Send(context.Background(), sms.Message{To: "+1"}); err == nil {
		t.Fatal("expected error for empty body")
	}
}
