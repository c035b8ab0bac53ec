package chats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopchat-core/pkg/db/dbtest"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func TestRecentReturnsNewestTurnsOldestFirst(t *testing.T) {
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)
	customerID := uuid.New()
	other := uuid.New()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"one", "two", "three", "four"} {
		msg := models.ChatMessage{
			CustomerID: customerID,
			Role:       enums.ChatRoleUser,
			Content:    content,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&msg).Error)
	}
	require.NoError(t, conn.Create(&models.ChatMessage{CustomerID: other, Role: enums.ChatRoleUser, Content: "noise", CreatedAt: base}).Error)

	rows, err := repo.Recent(context.Background(), customerID, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "two", rows[0].Content)
	require.Equal(t, "three", rows[1].Content)
	require.Equal(t, "four", rows[2].Content)
}

func TestAppendRejectsBlankContent(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())

	_, err := repo.Append(context.Background(), uuid.New(), enums.ChatRoleUser, "   ")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	msg, err := repo.Append(context.Background(), uuid.New(), enums.ChatRoleAssistant, " hola ")
	require.NoError(t, err)
	require.Equal(t, "hola", msg.Content)
}
