package service

import (
	"context"

	"fusionforge/internal/models"
	"fusionforge/internal/repository"
)

// AccessController resolves whether an identity may contribute to or read a
// fusion post. Every check hits the graph store live; eligibility is never
// cached, so a relationship change affects the very next submission.
type AccessController struct {
	graphRepo repository.GraphRepository
}

// NewAccessController creates a new access controller
func NewAccessController(graphRepo repository.GraphRepository) *AccessController {
	return &AccessController{graphRepo: graphRepo}
}

// EvaluateContribution returns nil when requesterID may append layers to post,
// or a permission error naming the unmet policy. There is no anonymous
// contribution mode. The owner may always contribute to their own post.
func (a *AccessController) EvaluateContribution(ctx context.Context, post *models.FusionPost, requesterID uint) error {
	if requesterID == 0 {
		return models.NewUnauthorizedError("Authentication required to contribute")
	}
	if requesterID == post.OwnerID {
		return nil
	}

	switch post.AllowedContributors {
	case models.ContributorsPublic:
		return nil
	case models.ContributorsFollowers:
		connected, err := a.graphRepo.IsConnected(ctx, requesterID, post.OwnerID)
		if err != nil {
			return err
		}
		if !connected {
			return models.NewPermissionError("Only followers of the owner may contribute to this post")
		}
		return nil
	case models.ContributorsInvited:
		invited, err := a.graphRepo.IsInvited(ctx, post.ID, requesterID)
		if err != nil {
			return err
		}
		if !invited {
			return models.NewPermissionError("Only invited users may contribute to this post")
		}
		return nil
	case models.ContributorsCloseCircle:
		member, err := a.graphRepo.InCloseCircle(ctx, post.OwnerID, requesterID)
		if err != nil {
			return err
		}
		if !member {
			return models.NewPermissionError("Only the owner's close circle may contribute to this post")
		}
		return nil
	default:
		return models.NewPermissionError("Contributions to this post are closed")
	}
}

// EvaluateRead returns nil when requesterID may read post per its privacy
// setting. Forking and engagement actions are read-derived, so they gate on
// this rather than on the contributor policy.
func (a *AccessController) EvaluateRead(ctx context.Context, post *models.FusionPost, requesterID uint) error {
	if post.Privacy == models.PrivacyPublic {
		return nil
	}
	if requesterID == 0 {
		return models.NewUnauthorizedError("Authentication required to view this post")
	}
	if requesterID == post.OwnerID {
		return nil
	}

	switch post.Privacy {
	case models.PrivacyFollowers:
		connected, err := a.graphRepo.IsConnected(ctx, requesterID, post.OwnerID)
		if err != nil {
			return err
		}
		if !connected {
			return models.NewPermissionError("This post is visible to the owner's followers only")
		}
		return nil
	case models.PrivacyInvited:
		invited, err := a.graphRepo.IsInvited(ctx, post.ID, requesterID)
		if err != nil {
			return err
		}
		if !invited {
			return models.NewPermissionError("This post is visible to invited users only")
		}
		return nil
	default:
		return models.NewPermissionError("This post is not visible to you")
	}
}
