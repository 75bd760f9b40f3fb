package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/middleware"
	"github.com/amaglobal/ama/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(t *testing.T) *gin.Context {
	t.Helper()
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest("GET", "/", nil)
	return ctx
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		size     string
		wantPage int
		wantSize int
	}{
		{"defaults", "", "", 1, 20},
		{"explicit", "3", "50", 3, 50},
		{"zero page falls back", "0", "10", 1, 10},
		{"negative ignored", "-2", "-5", 1, 20},
		{"size capped", "1", "500", 1, 20},
		{"garbage ignored", "abc", "xyz", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := parsePagination(tt.page, tt.size)
			if page != tt.wantPage || size != tt.wantSize {
				t.Errorf("parsePagination(%q, %q) = (%d, %d), want (%d, %d)",
					tt.page, tt.size, page, size, tt.wantPage, tt.wantSize)
			}
		})
	}
}

func TestPageSlice(t *testing.T) {
	items := make([]store.QuestionView, 5)
	for i := range items {
		items[i].ID = string(rune('a' + i))
	}
	tests := []struct {
		name string
		page int
		size int
		want []string
	}{
		{"first page", 1, 2, []string{"a", "b"}},
		{"middle page", 2, 2, []string{"c", "d"}},
		{"short last page", 3, 2, []string{"e"}},
		{"past the end", 4, 2, []string{}},
		{"whole feed", 1, 20, []string{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageSlice(items, tt.page, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("page %d size %d returned %d items, want %d", tt.page, tt.size, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Errorf("item %d = %q, want %q", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestAuthedUserID(t *testing.T) {
	ctx := newTestContext(t)
	if _, ok := authedUserID(ctx); ok {
		t.Fatal("anonymous context produced a user id")
	}

	ctx.Set(middleware.ContextUserIDKey, uint(42))
	id, ok := authedUserID(ctx)
	if !ok || id != "42" {
		t.Errorf("got (%q, %v), want (42, true)", id, ok)
	}

	ctx.Set(middleware.ContextUserIDKey, float64(7))
	id, ok = authedUserID(ctx)
	if !ok || id != "7" {
		t.Errorf("float64 claim: got (%q, %v), want (7, true)", id, ok)
	}
}

func TestActorIDOfflineFallsBackToLocalUser(t *testing.T) {
	local, err := store.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	ctx := newTestContext(t)
	if _, ok := actorID(ctx, local, true); ok {
		t.Fatal("signed-out offline context produced an actor")
	}

	u, err := local.SaveUser(store.LocalUser{Username: "amy", Email: "amy@example.com"})
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := local.SetCurrentUser(u); err != nil {
		t.Fatalf("set current user: %v", err)
	}

	id, ok := actorID(ctx, local, true)
	if !ok || id != u.ID {
		t.Errorf("offline actor = (%q, %v), want (%q, true)", id, ok, u.ID)
	}

	// Online, only the JWT identity counts.
	if _, ok := actorID(ctx, local, false); ok {
		t.Fatal("online context fell back to the local user")
	}

	ctx.Set(middleware.ContextUserIDKey, uint(9))
	id, ok = actorID(ctx, local, true)
	if !ok || id != "9" {
		t.Errorf("JWT identity should win: got (%q, %v)", id, ok)
	}
}
