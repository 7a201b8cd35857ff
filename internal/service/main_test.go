package service

import (
	"os"
	"testing"

	"tdh/internal/models"
	"tdh/internal/repository"
	"tdh/internal/storage"
	"tdh/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type fixture struct {
	db        *gorm.DB
	mediaDir  string
	publisher *testutil.RecordingPublisher
	accounts  *AccountService
	posts     *PostService
	comments  *CommentService
	centers   *CenterService
	admin     *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	dir := t.TempDir()
	pub := &testutil.RecordingPublisher{}

	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	centers := repository.NewCenterRepository(db)
	uploader := &MediaUploader{Store: storage.NewLocalStore(dir), MaxBytes: 5 << 20}

	return &fixture{
		db:        db,
		mediaDir:  dir,
		publisher: pub,
		accounts:  NewAccountService(users, posts, uploader, pub).WithBcryptCost(bcrypt.MinCost),
		posts:     NewPostService(posts, uploader, pub),
		comments:  NewCommentService(comments, pub),
		centers:   NewCenterService(centers),
		admin:     NewAdminService(users, posts, centers),
	}
}

func (f *fixture) user(t *testing.T, name string, status models.AccountStatus) *models.User {
	return testutil.CreateUser(t, f.db, name, status)
}

func (f *fixture) adminUser(t *testing.T, name string) *models.User {
	return testutil.CreateAdmin(t, f.db, name)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code, "message: %s", appErr.Message)
}

func TestPageNormalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Page{Limit: DefaultPageSize}, Page{}.normalize())
	assert.Equal(t, Page{Limit: MaxPageSize, Offset: 0}, Page{Limit: 1000, Offset: -3}.normalize())
	assert.Equal(t, Page{Limit: 5, Offset: 10}, Page{Limit: 5, Offset: 10}.normalize())
}
