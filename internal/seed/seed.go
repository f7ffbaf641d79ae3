package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"fusionforge/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Seeder populates the database with a connected demo dataset: a social mesh
// of users, fusion posts across every privacy and moderation mode, layers,
// invites and likes.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	r       *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Seeder{
		db:      db,
		factory: NewFactory(db),
		r:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed populates the database with demo data.
func Seed(db *gorm.DB, opts Options) error {
	s := NewSeeder(db)

	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	users, err := s.SeedSocialMesh(opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	posts, err := s.SeedFusionPosts(users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to seed fusion posts: %w", err)
	}
	log.Printf("✓ %d fusion posts created", len(posts))

	if err := s.SeedEngagement(users, posts); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// ClearAll truncates every seeded table.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE likes, layers, layer_invites, close_circle_members, follows, fusion_posts, users RESTART IDENTITY CASCADE;`
	return s.db.Exec(sql).Error
}

// SeedSocialMesh creates count users and wires them into a follow graph with
// a sprinkling of close-circle edges. Roughly each user follows a handful of
// others; the first few users accumulate the most followers.
func (s *Seeder) SeedSocialMesh(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	for _, follower := range users {
		edges := s.r.Intn(6) + 2
		for j := 0; j < edges; j++ {
			// Bias toward low IDs so a few users become popular.
			followee := users[s.r.Intn(s.r.Intn(len(users))+1)]
			if followee.ID == follower.ID {
				continue
			}
			// Unique index rejects duplicate pairs; that's fine here.
			_ = s.factory.CreateFollow(follower, followee)
		}
	}

	for _, owner := range users {
		if s.r.Float32() > 0.3 {
			continue
		}
		member := users[s.r.Intn(len(users))]
		if member.ID != owner.ID {
			_ = s.factory.CreateCloseCircleMember(owner, member)
		}
	}

	return users, nil
}

var (
	privacies = []models.PostPrivacy{
		models.PrivacyPublic, models.PrivacyPublic, models.PrivacyPublic,
		models.PrivacyFollowers, models.PrivacyInvited,
	}
	contributorPolicies = []models.ContributorPolicy{
		models.ContributorsPublic, models.ContributorsPublic,
		models.ContributorsFollowers, models.ContributorsInvited,
		models.ContributorsCloseCircle,
	}
	moderationModes = []models.ModerationMode{
		models.ModerationNone, models.ModerationNone, models.ModerationNone,
		models.ModerationPreApprove, models.ModerationAuto,
	}
)

// SeedFusionPosts creates count fusion posts spread across the given users,
// covering every privacy level, contributor policy and moderation mode.
// Invited posts get a couple of invites so they are actually contributable.
func (s *Seeder) SeedFusionPosts(users []*models.User, count int) ([]*models.FusionPost, error) {
	posts := make([]*models.FusionPost, 0, count)
	for i := 0; i < count; i++ {
		owner := users[s.r.Intn(len(users))]

		post, err := s.factory.CreateFusionPost(owner, func(p *models.FusionPost) {
			p.Privacy = privacies[s.r.Intn(len(privacies))]
			p.AllowedContributors = contributorPolicies[s.r.Intn(len(contributorPolicies))]
			p.ModerationMode = moderationModes[s.r.Intn(len(moderationModes))]
		})
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)

		if post.Privacy == models.PrivacyInvited || post.AllowedContributors == models.ContributorsInvited {
			for j := 0; j < 2; j++ {
				invitee := users[s.r.Intn(len(users))]
				if invitee.ID != owner.ID {
					_ = s.factory.CreateInvite(post, invitee)
				}
			}
		}

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d fusion posts...", i)
		}
	}
	return posts, nil
}

// SeedEngagement layers contributions and likes onto the given posts. Layers
// are written directly with sequential orders; pre-approve posts get one
// pending layer so the moderation queue has something in it.
func (s *Seeder) SeedEngagement(users []*models.User, posts []*models.FusionPost) error {
	for _, post := range posts {
		layerCount := s.r.Intn(5)
		for order := 1; order <= layerCount; order++ {
			author := users[s.r.Intn(len(users))]
			if _, err := s.factory.CreateLayer(author, post, order); err != nil {
				return err
			}
		}

		if post.ModerationMode == models.ModerationPreApprove {
			author := users[s.r.Intn(len(users))]
			if _, err := s.factory.CreateLayer(author, post, layerCount+1, func(l *models.Layer) {
				l.IsApproved = false
			}); err != nil {
				return err
			}
		}

		likeCount := s.r.Intn(8)
		seen := make(map[uint]struct{}, likeCount)
		for j := 0; j < likeCount; j++ {
			fan := users[s.r.Intn(len(users))]
			if _, dup := seen[fan.ID]; dup {
				continue
			}
			seen[fan.ID] = struct{}{}
			if err := s.factory.CreateLike(fan, post); err != nil {
				return err
			}
		}

		// Monotone counters carry no membership, so plain numbers will do.
		if err := s.db.Model(post).UpdateColumns(map[string]any{
			"views_count":  s.r.Intn(500),
			"shares_count": s.r.Intn(20),
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
