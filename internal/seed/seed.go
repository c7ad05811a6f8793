package seed

import (
	"context"
	"fmt"
	"log"

	"strayland/internal/cache"
	"strayland/internal/models"
	"strayland/internal/repository"
	"strayland/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumPosts           int
	NumVoters          int
	MaxCommentsPerPost int
	MaxDays            int
	RandSeed           int64
	ShouldClean        bool
	DryRun             bool
}

// DefaultOptions is a small feed suitable for local development.
func DefaultOptions() Options {
	return Options{NumPosts: 40, NumVoters: 25, MaxCommentsPerPost: 4, MaxDays: 30}
}

// Summary counts what a seeding run created.
type Summary struct {
	Posts    int
	Comments int
	Likes    int
}

// Seeder fills the database with posts, comments and likes. Likes go
// through the like service so stored counters match the like rows.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	likes   *service.LikeService
}

// NewSeeder returns a Seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(db, opts),
		likes:   service.NewLikeService(repository.NewLikeRepository(db, cache.New(nil))),
	}
}

// Seed populates the database with demo data.
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d posts for %d voters...", s.opts.NumPosts, s.opts.NumVoters)

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := ClearData(s.db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	voters := make([]string, 0, s.opts.NumVoters)
	for i := 0; i < s.opts.NumVoters; i++ {
		voters = append(voters, s.factory.Voter())
	}

	summary := &Summary{}
	for i := 0; i < s.opts.NumPosts; i++ {
		owner := ""
		if len(voters) > 0 {
			owner = s.factory.Pick(voters, 1)[0]
		}
		post, err := s.factory.CreatePost(owner)
		if err != nil {
			return summary, fmt.Errorf("create post: %w", err)
		}
		summary.Posts++

		for _, commenter := range s.factory.Pick(voters, s.factory.Intn(s.opts.MaxCommentsPerPost)) {
			if _, err := s.factory.CreateComment(post, commenter); err != nil {
				return summary, fmt.Errorf("create comment: %w", err)
			}
			summary.Comments++
		}

		if s.opts.DryRun {
			continue
		}
		for _, fan := range s.factory.Pick(voters, s.factory.Intn(len(voters))) {
			if _, err := s.likes.Toggle(ctx, post.ID, fan); err != nil {
				return summary, fmt.Errorf("like post %d: %w", post.ID, err)
			}
			summary.Likes++
		}
	}

	log.Printf("✓ %d posts, %d comments and %d likes created", summary.Posts, summary.Comments, summary.Likes)
	return summary, nil
}

// ClearData removes every like, comment and post.
func ClearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE likes, comments, posts RESTART IDENTITY CASCADE`).Error
	}
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Like{}, &models.Comment{}, &models.Post{}} {
		if err := all.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
