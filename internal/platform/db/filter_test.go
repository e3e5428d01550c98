package db

import (
	"reflect"
	"testing"
)

func TestFilter_Empty(t *testing.T) {
	var f Filter
	if f.Where() != "" {
		t.Errorf("expected empty WHERE, got %q", f.Where())
	}
	if !f.Empty() || f.Next() != 1 {
		t.Error("expected empty filter with next placeholder 1")
	}
}

func TestFilter_Conditions(t *testing.T) {
	var f Filter
	f.Eq("user_id", int64(7)).Eq("status", "PLANNED").IsNull("revoked_at")

	want := " WHERE user_id = $1 AND status = $2 AND revoked_at IS NULL"
	if f.Where() != want {
		t.Errorf("expected %q, got %q", want, f.Where())
	}
	if !reflect.DeepEqual(f.Args(), []any{int64(7), "PLANNED"}) {
		t.Errorf("unexpected args: %v", f.Args())
	}
	if f.Next() != 3 {
		t.Errorf("expected next placeholder 3, got %d", f.Next())
	}
}
