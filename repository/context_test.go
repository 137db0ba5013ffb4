package repository

import (
	"testing"
)

func TestContext_CopiesNeverShareRelations(t *testing.T) {
	base := Context{}.WithRelations("customer")
	a := base.WithRelations("documents")
	b := base.WithRelations("subscription")

	if len(base.Relations) != 1 {
		t.Fatalf("expected base to keep 1 relation, got %v", base.Relations)
	}
	if a.Relations[1] != "documents" || b.Relations[1] != "subscription" {
		t.Errorf("expected independent copies, got a=%v b=%v", a.Relations, b.Relations)
	}
}

func TestContext_WithRelationsDedupes(t *testing.T) {
	rc := Context{}.WithRelations("customer", "documents", "customer", "")
	expected := []string{"customer", "documents"}

	if len(rc.Relations) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, rc.Relations)
	}
	for i := range expected {
		if rc.Relations[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, rc.Relations)
		}
	}
}

func TestContext_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		rc        Context
		paginated bool
		offset    int
		limit     int
	}{
		{"none", Context{}, false, 0, 0},
		{"first page", Context{}.WithPage(1, 25), true, 0, 25},
		{"third page", Context{}.WithPage(3, 10), true, 20, 10},
		{"page without size", Context{Page: 2}, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rc.Paginated(); got != tt.paginated {
				t.Errorf("expected paginated %v, got %v", tt.paginated, got)
			}
			if got := tt.rc.Offset(); got != tt.offset {
				t.Errorf("expected offset %d, got %d", tt.offset, got)
			}
			if got := tt.rc.Limit(); got != tt.limit {
				t.Errorf("expected limit %d, got %d", tt.limit, got)
			}
		})
	}
}

func TestContext_RelationScope(t *testing.T) {
	rc := Context{OfficeID: 3, Page: 2, PageSize: 10, LazyLoadDenied: true}.WithRelations("customer")
	scope := rc.RelationScope()

	if scope.OfficeID != 3 || !scope.LazyLoadDenied {
		t.Errorf("expected office and lazy flag kept, got %+v", scope)
	}
	if scope.Paginated() || scope.HasRelations() {
		t.Errorf("expected no pagination or relations, got %+v", scope)
	}
}
