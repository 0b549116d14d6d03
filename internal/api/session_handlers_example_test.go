package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/JakeFAU/siteclone/internal/api"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/storage/memory"
)

func ExampleSessionHandler_Get() {
	repo := memory.NewSessionStore(session.DefaultLogCapacity, memory.DefaultMaxSessions)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.StartSession(context.Background(), "abc123", "req-1", "https://example.com",
		session.Entry{Text: session.LineConnecting}, at)

	srv := api.NewServer(repo, nil, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/abc123", nil))

	fmt.Println(rr.Code)
	// Output:
	// 200
}
