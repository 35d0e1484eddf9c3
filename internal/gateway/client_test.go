package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSendEmail(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotForm map[string]string
	var gotAttachments []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-KEY")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		gotForm = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotForm[name] = values[0]
		}
		for _, fh := range r.MultipartForm.File["attachments"] {
			gotAttachments = append(gotAttachments, fh.Filename)
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"object":"EmailSent"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	attachment := filepath.Join(dir, "deck.pdf")
	if err := os.WriteFile(attachment, []byte("pdf bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := New(srv.URL, "secret-key", 5*time.Second)

	err := client.SendEmail(context.Background(), SendEmailParams{
		AccountID: "acc_123",
		To: []Recipient{
			{DisplayName: "Ada Lovelace", Identifier: "ada@example.com"},
		},
		Subject:         "Hello",
		Body:            "Body text",
		AttachmentPaths: []string{attachment},
	})
	if err != nil {
		t.Fatalf("SendEmail returned error: %v", err)
	}

	if gotPath != "/api/v1/emails" {
		t.Errorf("path = %q, want /api/v1/emails", gotPath)
	}
	if gotAPIKey != "secret-key" {
		t.Errorf("X-API-KEY = %q, want secret-key", gotAPIKey)
	}
	if gotForm["account_id"] != "acc_123" {
		t.Errorf("account_id = %q", gotForm["account_id"])
	}
	if gotForm["subject"] != "Hello" || gotForm["body"] != "Body text" {
		t.Errorf("subject/body = %q/%q", gotForm["subject"], gotForm["body"])
	}

	var recipients []Recipient
	if err := json.Unmarshal([]byte(gotForm["to"]), &recipients); err != nil {
		t.Fatalf("to field is not JSON: %v", err)
	}
	if len(recipients) != 1 || recipients[0].Identifier != "ada@example.com" {
		t.Errorf("recipients = %+v", recipients)
	}

	if len(gotAttachments) != 1 || gotAttachments[0] != "deck.pdf" {
		t.Errorf("attachments = %v", gotAttachments)
	}
}

func TestSendChatMessage(t *testing.T) {
	var gotPath, gotText string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotText = r.MultipartForm.Value["text"][0]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", 5*time.Second)

	err := client.SendChatMessage(context.Background(), "chat_42", "ping", nil)
	if err != nil {
		t.Fatalf("SendChatMessage returned error: %v", err)
	}

	if gotPath != "/api/v1/chats/chat_42/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotText != "ping" {
		t.Errorf("text = %q, want ping", gotText)
	}
}

func TestGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"type":"errors/invalid_recipient"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", 5*time.Second)

	err := client.SendChatMessage(context.Background(), "chat_1", "hi", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("error type = %T, want *GatewayError", err)
	}
	if gwErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", gwErr.StatusCode)
	}
}
