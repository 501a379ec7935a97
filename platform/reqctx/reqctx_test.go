package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRoundTripThroughContext(t *testing.T) {
	rc := RequestContext{UserID: uuid.New(), Roles: []string{RolePro}}
	got, ok := From(With(context.Background(), rc))
	if !ok {
		t.Fatal("expected request context on ctx")
	}
	if got.UserID != rc.UserID || !got.HasRole(RolePro) || got.IsAdmin() {
		t.Fatalf("unexpected request context %+v", got)
	}
	if _, ok := From(context.Background()); ok {
		t.Fatal("expected no request context on empty ctx")
	}
}
