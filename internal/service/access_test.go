package service

import (
	"context"
	"testing"

	"fusionforge/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAccessController_EvaluateContribution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	post := func(policy models.ContributorPolicy) *models.FusionPost {
		return &models.FusionPost{ID: 1, OwnerID: 10, AllowedContributors: policy}
	}

	t.Run("anonymous is always refused", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		err := ac.EvaluateContribution(ctx, post(models.ContributorsPublic), 0)
		assertErrorCode(t, err, models.CodeUnauthorized)
	})

	t.Run("owner may always contribute", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		assert.NoError(t, ac.EvaluateContribution(ctx, post(models.ContributorsInvited), 10))
	})

	t.Run("public admits any authenticated identity", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		assert.NoError(t, ac.EvaluateContribution(ctx, post(models.ContributorsPublic), 2))
	})

	t.Run("followers requires a graph edge in either direction", func(t *testing.T) {
		graph := noopGraphRepo()
		graph.isConnectedFn = func(_ context.Context, a, b uint) (bool, error) {
			return a == 2 && b == 10, nil
		}
		ac := NewAccessController(graph)

		assert.NoError(t, ac.EvaluateContribution(ctx, post(models.ContributorsFollowers), 2))
		assertErrorCode(t,
			ac.EvaluateContribution(ctx, post(models.ContributorsFollowers), 3),
			models.CodePermission)
	})

	t.Run("invited consults the per-post list", func(t *testing.T) {
		graph := noopGraphRepo()
		graph.isInvitedFn = func(_ context.Context, postID, userID uint) (bool, error) {
			return postID == 1 && userID == 4, nil
		}
		ac := NewAccessController(graph)

		assert.NoError(t, ac.EvaluateContribution(ctx, post(models.ContributorsInvited), 4))
		assertErrorCode(t,
			ac.EvaluateContribution(ctx, post(models.ContributorsInvited), 5),
			models.CodePermission)
	})

	t.Run("close circle consults the owner's set", func(t *testing.T) {
		graph := noopGraphRepo()
		graph.inCloseCircleFn = func(_ context.Context, ownerID, memberID uint) (bool, error) {
			return ownerID == 10 && memberID == 6, nil
		}
		ac := NewAccessController(graph)

		assert.NoError(t, ac.EvaluateContribution(ctx, post(models.ContributorsCloseCircle), 6))
		assertErrorCode(t,
			ac.EvaluateContribution(ctx, post(models.ContributorsCloseCircle), 7),
			models.CodePermission)
	})

	t.Run("a relationship change takes effect on the next submission", func(t *testing.T) {
		connected := true
		graph := noopGraphRepo()
		graph.isConnectedFn = func(_ context.Context, _, _ uint) (bool, error) { return connected, nil }
		ac := NewAccessController(graph)

		p := post(models.ContributorsFollowers)
		assert.NoError(t, ac.EvaluateContribution(ctx, p, 2))

		connected = false
		assertErrorCode(t, ac.EvaluateContribution(ctx, p, 2), models.CodePermission)
	})
}

func TestAccessController_EvaluateRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	post := func(privacy models.PostPrivacy) *models.FusionPost {
		return &models.FusionPost{ID: 1, OwnerID: 10, Privacy: privacy}
	}

	t.Run("public is readable by anyone including anonymous", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyPublic), 0))
		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyPublic), 99))
	})

	t.Run("restricted posts refuse anonymous readers", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		assertErrorCode(t, ac.EvaluateRead(ctx, post(models.PrivacyFollowers), 0), models.CodeUnauthorized)
		assertErrorCode(t, ac.EvaluateRead(ctx, post(models.PrivacyInvited), 0), models.CodeUnauthorized)
	})

	t.Run("owner reads everything", func(t *testing.T) {
		ac := NewAccessController(noopGraphRepo())
		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyFollowers), 10))
		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyInvited), 10))
	})

	t.Run("followers privacy gates on the graph", func(t *testing.T) {
		graph := noopGraphRepo()
		graph.isConnectedFn = func(_ context.Context, a, _ uint) (bool, error) { return a == 2, nil }
		ac := NewAccessController(graph)

		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyFollowers), 2))
		assertErrorCode(t, ac.EvaluateRead(ctx, post(models.PrivacyFollowers), 3), models.CodePermission)
	})

	t.Run("invited privacy gates on the invite list", func(t *testing.T) {
		graph := noopGraphRepo()
		graph.isInvitedFn = func(_ context.Context, _, userID uint) (bool, error) { return userID == 4, nil }
		ac := NewAccessController(graph)

		assert.NoError(t, ac.EvaluateRead(ctx, post(models.PrivacyInvited), 4))
		assertErrorCode(t, ac.EvaluateRead(ctx, post(models.PrivacyInvited), 5), models.CodePermission)
	})
}
