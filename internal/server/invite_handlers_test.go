package server

import (
	"fmt"
	"net/http"
	"testing"

	"fusionforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteLifecycle(t *testing.T) {
	app, srv := setupTestServer(t)
	ownerToken := signTestToken(t, createTestUser(t, srv.db, "owner"))
	guestID := createTestUser(t, srv.db, "guest")
	guestToken := signTestToken(t, guestID)

	post := createTestPost(t, app, ownerToken, map[string]any{
		"allowed_contributors": "invited",
	})
	invitesPath := fmt.Sprintf("/api/posts/%d/invites", post.ID)

	t.Run("only the owner manages invites", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, invitesPath, guestToken, map[string]any{"user_id": guestID})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = doJSON(t, app, http.MethodGet, invitesPath, guestToken, nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown invitee", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, invitesPath, ownerToken, map[string]any{"user_id": 9999})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	resp := doJSON(t, app, http.MethodPost, invitesPath, ownerToken, map[string]any{"user_id": guestID})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	list := doJSON(t, app, http.MethodGet, invitesPath, ownerToken, nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	var invites []models.LayerInvite
	decodeJSON(t, list, &invites)
	require.Len(t, invites, 1)
	assert.Equal(t, guestID, invites[0].UserID)

	t.Run("revoking closes future submissions", func(t *testing.T) {
		del := doJSON(t, app, http.MethodDelete,
			fmt.Sprintf("%s/%d", invitesPath, guestID), ownerToken, nil)
		defer func() { _ = del.Body.Close() }()
		require.Equal(t, http.StatusNoContent, del.StatusCode)

		resp := submitLayer(t, app, guestToken, post.ID, map[string]any{
			"type": "text", "content": "still here?",
		})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
