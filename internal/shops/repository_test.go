package shops

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopchat-core/pkg/db/dbtest"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func TestFindByPageID(t *testing.T) {
	conn := dbtest.Open(t).DB()
	shop := models.Shop{Name: "Tienda", PageID: "page-1"}
	if err := conn.Create(&shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	repo := NewRepository(conn)

	got, err := repo.FindByPageID(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("find by page: %v", err)
	}
	if got.ID != shop.ID {
		t.Fatalf("expected shop %s, got %s", shop.ID, got.ID)
	}

	if _, err := repo.FindByID(context.Background(), uuid.New()); pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
