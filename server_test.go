package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"github.com/gin-gonic/gin"
)

func TestRequestMiddleware_PropagatesIdentityAndCorrelation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(identityMiddleware())

	var gotCid, gotEmail, gotName string
	var gotUserId int
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		gotCid, _ = utils.GetCorrelationIdFromContext(ctx)
		gotEmail, _ = utils.GetUsernameFromContext(ctx)
		gotName, _ = utils.GetUserNameFromContext(ctx)
		gotUserId, _ = utils.GetUserIdFromContext(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-correlation-id", "cid-123")
	req.Header.Set("x-user-email", "mya@crew.local")
	req.Header.Set("x-user-name", "Mya Thwe")
	req.Header.Set("x-user-id", "42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if gotCid != "cid-123" {
		t.Fatalf("correlation id = %q", gotCid)
	}
	if gotEmail != "mya@crew.local" || gotName != "Mya Thwe" || gotUserId != 42 {
		t.Fatalf("identity = %q / %q / %d", gotEmail, gotName, gotUserId)
	}
}

func TestRequestMiddleware_GeneratesCorrelationId(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(correlationMiddleware())

	var gotCid string
	r.GET("/whoami", func(c *gin.Context) {
		gotCid, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	if gotCid == "" {
		t.Fatal("no correlation id generated for a bare request")
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{utils.ErrorRecordNotFound, http.StatusNotFound},
		{&models.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}, http.StatusBadRequest},
		{&models.InvalidTransitionError{Op: "receive", From: models.PartStatusNeeded}, http.StatusConflict},
		{&models.InsufficientStockError{InventoryItemId: 1, Requested: 4, Available: 3}, http.StatusConflict},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
