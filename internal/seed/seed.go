// Package seed populates a development database with fake members and
// activity. It is never run by the server itself.
package seed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tdh/internal/middleware"
	"tdh/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded member.
const DefaultPassword = "password123"

var trainingCourses = []string{
	"Barista Fundamentals", "Digital Literacy", "Tailoring", "Bookkeeping",
	"Customer Service", "Graphic Design", "Hospitality", "Electrical Basics",
}

// Options controls how much data is generated.
type Options struct {
	Members         int
	PendingMembers  int
	PostsPerMember  int
	CommentsPerPost int
	// LikePercent is the chance, per approved member and post, of a like.
	LikePercent int
	// Clean removes existing members (except administrators) and their content first.
	Clean bool
	// RandSeed makes the output reproducible when non-zero.
	RandSeed   int64
	BcryptCost int
	MaxDays    int
}

// Result reports what Seed created.
type Result struct {
	Members  int
	Pending  int
	Posts    int
	Comments int
	Likes    int
}

// DefaultOptions returns a small but lively community.
func DefaultOptions() Options {
	return Options{
		Members:         25,
		PendingMembers:  5,
		PostsPerMember:  3,
		CommentsPerPost: 2,
		LikePercent:     30,
		BcryptCost:      bcrypt.DefaultCost,
		MaxDays:         60,
	}
}

// Seeder writes generated data through a GORM handle.
type Seeder struct {
	db   *gorm.DB
	fake *gofakeit.Faker
	opts Options
}

// NewSeeder prepares a seeder. Zero-valued options fall back to DefaultOptions.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	def := DefaultOptions()
	if opts.BcryptCost == 0 {
		opts.BcryptCost = def.BcryptCost
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = def.MaxDays
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{db: db, fake: gofakeit.New(seed), opts: opts}
}

// Run generates members and activity in one transaction.
func (s *Seeder) Run() (Result, error) {
	var res Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if s.opts.Clean {
			if err := ClearMembers(tx); err != nil {
				return err
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.BcryptCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}

		members, err := s.createUsers(tx, s.opts.Members, models.StatusApproved, string(hash))
		if err != nil {
			return err
		}
		pending, err := s.createUsers(tx, s.opts.PendingMembers, models.StatusPending, string(hash))
		if err != nil {
			return err
		}
		res.Members, res.Pending = len(members), len(pending)

		posts, err := s.createPosts(tx, members)
		if err != nil {
			return err
		}
		res.Posts = len(posts)

		if res.Comments, err = s.createComments(tx, members, posts); err != nil {
			return err
		}
		if res.Likes, err = s.createLikes(tx, members, posts); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	middleware.Logger.Info("seed complete",
		slog.Int("members", res.Members),
		slog.Int("pending", res.Pending),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes))
	return res, nil
}

// ClearMembers deletes every non-administrator account and all content.
// Centers and administrator accounts are kept.
func ClearMembers(db *gorm.DB) error {
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Like{}, &models.Comment{}, &models.Post{}} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	if err := db.Where("is_admin = ?", false).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	return nil
}

func (s *Seeder) createUsers(tx *gorm.DB, n int, status models.AccountStatus, hash string) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		username := s.username(i)
		email := username + "@" + strings.ToLower(s.fake.DomainName())
		u := &models.User{
			Username:       username,
			Email:          &email,
			Password:       hash,
			Status:         status,
			Bio:            s.fake.Sentence(s.fake.Number(4, 12)),
			TrainingCourse: trainingCourses[s.fake.Number(0, len(trainingCourses)-1)],
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := tx.Create(&users).Error; err != nil {
		return nil, fmt.Errorf("create %s users: %w", status, err)
	}
	return users, nil
}

// username appends the index so generated names never collide within a run.
func (s *Seeder) username(i int) string {
	base := strings.ToLower(s.fake.Username())
	if len(base) > 40 {
		base = base[:40]
	}
	return fmt.Sprintf("%s_%d%03d", base, i, s.fake.Number(0, 999))
}

func (s *Seeder) createPosts(tx *gorm.DB, authors []*models.User) ([]*models.Post, error) {
	var posts []*models.Post
	for _, author := range authors {
		for i := 0; i < s.opts.PostsPerMember; i++ {
			posts = append(posts, &models.Post{
				UserID:    author.ID,
				Content:   s.fake.Paragraph(1, s.fake.Number(1, 3), s.fake.Number(6, 14), " "),
				CreatedAt: s.pastTime(),
			})
		}
	}
	if len(posts) == 0 {
		return posts, nil
	}
	if err := tx.Omit("User", "Comments").Create(&posts).Error; err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	return posts, nil
}

func (s *Seeder) createComments(tx *gorm.DB, authors []*models.User, posts []*models.Post) (int, error) {
	if len(authors) == 0 || s.opts.CommentsPerPost <= 0 {
		return 0, nil
	}
	var comments []*models.Comment
	for _, p := range posts {
		for i := 0; i < s.opts.CommentsPerPost; i++ {
			author := authors[s.fake.Number(0, len(authors)-1)]
			comments = append(comments, &models.Comment{
				PostID:    p.ID,
				UserID:    author.ID,
				Content:   s.fake.Sentence(s.fake.Number(3, 10)),
				CreatedAt: p.CreatedAt.Add(time.Duration(i+1) * time.Duration(s.fake.Number(1, 180)) * time.Minute),
			})
		}
	}
	if len(comments) == 0 {
		return 0, nil
	}
	if err := tx.Omit("User").Create(&comments).Error; err != nil {
		return 0, fmt.Errorf("create comments: %w", err)
	}
	return len(comments), nil
}

// createLikes inserts like rows and sets each post's counter to its row count.
func (s *Seeder) createLikes(tx *gorm.DB, members []*models.User, posts []*models.Post) (int, error) {
	if s.opts.LikePercent <= 0 {
		return 0, nil
	}
	total := 0
	for _, p := range posts {
		var likes []*models.Like
		for _, m := range members {
			if s.fake.Number(1, 100) <= s.opts.LikePercent {
				likes = append(likes, &models.Like{UserID: m.ID, PostID: p.ID})
			}
		}
		if len(likes) == 0 {
			continue
		}
		if err := tx.Omit("User", "Post").Create(&likes).Error; err != nil {
			return 0, fmt.Errorf("create likes: %w", err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", p.ID).
			Update("likes", len(likes)).Error; err != nil {
			return 0, fmt.Errorf("update like counter: %w", err)
		}
		total += len(likes)
	}
	return total, nil
}

func (s *Seeder) pastTime() time.Time {
	back := time.Duration(s.fake.Number(0, s.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}
