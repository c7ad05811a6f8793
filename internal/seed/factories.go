// Package seed provides helpers to create demo data for the feed database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"strayland/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds feed entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero RandSeed picks a random one.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{db: db, opts: opts, faker: gofakeit.New(opts.RandSeed), nextID: 1000}
}

// Voter returns a synthetic signed-in voter id.
func (f *Factory) Voter() string {
	return "user:seed-" + strings.ToLower(f.faker.Username())
}

// BuildPost constructs a post without persisting it. Roughly half of the
// posts carry a shelter or cafe attachment.
func (f *Factory) BuildPost(voterID string, overrides ...func(*models.Post)) *models.Post {
	animal := f.faker.Dog()
	if f.faker.Bool() {
		animal = f.faker.Cat()
	}
	post := &models.Post{
		Author:   f.faker.FirstName(),
		Title:    fmt.Sprintf("%s spotted near %s", animal, f.faker.Street()),
		Content:  f.faker.Paragraph(1, 3, 8, "\n"),
		VoterID:  voterID,
		ImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()),
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	post.CreatedAt = time.Now().Add(-back)
	post.UpdatedAt = post.CreatedAt

	if f.faker.Bool() {
		f.attachPlace(post)
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

func (f *Factory) attachPlace(post *models.Post) {
	lat := f.faker.Latitude()
	lng := f.faker.Longitude()
	post.Lat = &lat
	post.Lng = &lng
	post.Address = fmt.Sprintf("%s, %s", f.faker.Street(), f.faker.City())
	if f.faker.Bool() {
		post.PlaceType = models.PlaceTypeShelter
		post.PlaceName = f.faker.LastName() + " Animal Shelter"
		return
	}
	post.PlaceType = models.PlaceTypeCafe
	post.PlaceName = f.faker.LastName() + " Pet Cafe"
}

// CreatePost builds and persists a post.
func (f *Factory) CreatePost(voterID string, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(voterID, overrides...)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		log.Printf("[dry-run] CreatePost: place=%q title=%q", post.PlaceType, post.Title)
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment constructs and persists a comment on post.
func (f *Factory) CreateComment(post *models.Post, voterID string, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:    post.ID,
		Author:    f.faker.FirstName(),
		Text:      f.faker.Sentence(f.faker.Number(4, 14)),
		VoterID:   voterID,
		CreatedAt: post.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute),
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Pick returns up to n distinct entries of voters.
func (f *Factory) Pick(voters []string, n int) []string {
	if n > len(voters) {
		n = len(voters)
	}
	shuffled := append([]string(nil), voters...)
	f.faker.ShuffleStrings(shuffled)
	return shuffled[:n]
}

// Intn returns a number in [0, n].
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.Number(0, n)
}
