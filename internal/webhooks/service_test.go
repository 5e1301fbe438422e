/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.WebhookTarget{}, &models.WebhookLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTargetHandlesEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		events    string
		eventType string
		want      bool
	}{
		{"empty subscribes to all", "", "rotation.advanced", true},
		{"exact match", "rotation.advanced", "rotation.advanced", true},
		{"list match with spaces", "expiry.reminder, rotation.advanced", "rotation.advanced", true},
		{"no match", "expiry.reminder", "rotation.advanced", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := models.WebhookTarget{Events: tc.events}
			if got := targetHandlesEvent(target, tc.eventType); got != tc.want {
				t.Errorf("targetHandlesEvent(%q, %q) = %v, want %v", tc.events, tc.eventType, got, tc.want)
			}
		})
	}
}

func TestTestDeliverySignsPayload(t *testing.T) {
	t.Parallel()

	const secret = "hunter2"

	var (
		mu       sync.Mutex
		gotSig   string
		gotEvent string
		gotBody  []byte
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotSig = r.Header.Get("X-Visar-Signature")
		gotEvent = r.Header.Get("X-Visar-Event")
		gotBody = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := NewService(openTestDB(t), events.NewBus(), zerolog.Nop())
	target := &models.WebhookTarget{ID: "wh-1", URL: ts.URL, Secret: secret}

	if err := svc.TestDelivery(target); err != nil {
		t.Fatalf("TestDelivery: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if gotEvent != "test" {
		t.Errorf("event header = %q, want test", gotEvent)
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(h.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var payload Payload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload.Event != "test" {
		t.Errorf("payload event = %q, want test", payload.Event)
	}
}

func TestTestDeliveryRejectedStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	svc := NewService(openTestDB(t), events.NewBus(), zerolog.Nop())
	target := &models.WebhookTarget{ID: "wh-1", URL: ts.URL}

	if err := svc.TestDelivery(target); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendLogsDelivery(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	db := openTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())
	target := models.WebhookTarget{ID: "wh-1", URL: ts.URL, Active: true}
	if err := db.Create(&target).Error; err != nil {
		t.Fatalf("create target: %v", err)
	}

	svc.send(t.Context(), target, "rotation.advanced", events.Payload{"content_item_id": "item-1"})

	var logs []models.WebhookLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("load logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logged %d deliveries, want 1", len(logs))
	}
	if logs[0].StatusCode != http.StatusOK {
		t.Errorf("logged status = %d, want 200", logs[0].StatusCode)
	}
	if logs[0].Event != "rotation.advanced" {
		t.Errorf("logged event = %q", logs[0].Event)
	}
}
