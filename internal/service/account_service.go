package service

import (
	"context"
	"strings"

	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/notifications"
	"tdh/internal/observability"
	"tdh/internal/repository"
	"tdh/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps Authenticate's timing similar for unknown usernames.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tdh-unknown-account"), bcrypt.DefaultCost)

type AccountService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	media      *MediaUploader
	publisher  notifications.Publisher
	bcryptCost int
}

type RegisterInput struct {
	Username string
	Password string
	Confirm  string
	Email    string
}

// UpdateProfileInput holds the editable profile fields. Nil means unchanged.
type UpdateProfileInput struct {
	Bio            *string
	TrainingCourse *string
	Picture        *Upload
}

func NewAccountService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	uploader *MediaUploader,
	publisher notifications.Publisher,
) *AccountService {
	return &AccountService{
		userRepo:   userRepo,
		postRepo:   postRepo,
		media:      uploader,
		publisher:  publisherOrNoop(publisher),
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *AccountService) WithBcryptCost(cost int) *AccountService {
	s.bcryptCost = cost
	return s
}

func (s *AccountService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(h), nil
}

// Register creates a pending, non-admin account. It does not sign the account in.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}
	if in.Password != in.Confirm {
		return nil, models.NewValidationError("Passwords do not match")
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Password: hash,
		Status:   models.StatusPending,
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		user.Email = &email
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials only. Whether the account may use the
// community is decided by the moderation gate on each operation.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, models.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewInvalidCredentialsError()
	}
	return user, nil
}

// TransitionStatus approves or rejects an account. Rejection removes the
// account and everything it authored.
func (s *AccountService) TransitionStatus(ctx context.Context, requester *models.User, accountID uint, target models.AccountStatus) error {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return err
	}

	switch target {
	case models.StatusApproved, models.StatusRejected:
	default:
		return models.NewValidationError("Unsupported account status")
	}

	account, err := s.userRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if target == models.StatusApproved {
		if account.Status == models.StatusApproved {
			return nil
		}
		if err := s.userRepo.SetStatus(ctx, accountID, models.StatusApproved); err != nil {
			return err
		}
		observability.AccountTransitions.WithLabelValues(string(target)).Inc()
		logPublishError(ctx, notifications.EventAccountApproved, s.publisher.NotifyUser(ctx, accountID, notifications.Event{
			Type:    notifications.EventAccountApproved,
			Payload: map[string]any{"user_id": accountID},
		}))
		return nil
	}

	if account.IsAdmin {
		return models.NewForbiddenError("Administrator accounts cannot be rejected")
	}
	if err := s.removeAccount(ctx, accountID); err != nil {
		return err
	}
	observability.AccountTransitions.WithLabelValues(string(target)).Inc()
	return nil
}

// DeleteSelf removes the requester's own account with all its content.
func (s *AccountService) DeleteSelf(ctx context.Context, requester *models.User) error {
	if err := moderation.RequireIdentity(requester).Err(); err != nil {
		return err
	}
	return s.removeAccount(ctx, requester.ID)
}

func (s *AccountService) removeAccount(ctx context.Context, id uint) error {
	released, err := s.userRepo.DeleteCascade(ctx, id)
	if err != nil {
		return err
	}
	s.media.release(ctx, released...)
	return nil
}

// UpdateProfile changes bio, training course and picture. Other fields are never touched.
func (s *AccountService) UpdateProfile(ctx context.Context, requester *models.User, in UpdateProfileInput) (*models.User, error) {
	if err := moderation.RequireIdentity(requester).Err(); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := validation.ValidateLength("bio", bio, validation.BioMaxLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["bio"] = bio
	}
	if in.TrainingCourse != nil {
		course := strings.TrimSpace(*in.TrainingCourse)
		if err := validation.ValidateLength("training_course", course, validation.CourseMaxLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["training_course"] = course
	}

	current, err := s.userRepo.GetByID(ctx, requester.ID)
	if err != nil {
		return nil, err
	}

	var newPicture string
	if in.Picture != nil {
		newPicture, err = s.media.save(ctx, "avatars", in.Picture)
		if err != nil {
			return nil, err
		}
		fields["profile_picture"] = newPicture
	}

	if err := s.userRepo.UpdateProfile(ctx, requester.ID, fields); err != nil {
		s.media.release(ctx, newPicture)
		return nil, err
	}
	if newPicture != "" && current.ProfilePicture != "" && current.ProfilePicture != newPicture {
		s.media.release(ctx, current.ProfilePicture)
	}

	return s.userRepo.GetByID(ctx, requester.ID)
}

// GetProfile returns an account. Viewing another member requires an approved requester.
func (s *AccountService) GetProfile(ctx context.Context, requester *models.User, accountID uint) (*models.User, error) {
	if err := s.viewGate(requester, accountID); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, accountID)
}

// ListAccountPosts returns an account's posts annotated with the requester's likes.
func (s *AccountService) ListAccountPosts(ctx context.Context, requester *models.User, accountID uint, page Page) ([]*models.Post, error) {
	if err := s.viewGate(requester, accountID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	page = page.normalize()
	posts, err := s.postRepo.ListByUser(ctx, accountID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	if err := annotateLiked(ctx, s.postRepo, requester.ID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *AccountService) viewGate(requester *models.User, accountID uint) error {
	if requester != nil && requester.ID == accountID {
		return moderation.RequireIdentity(requester).Err()
	}
	return moderation.Evaluate(requester).Err()
}

// EnsureAdmin creates or promotes an administrator. Administrators are always approved.
// A non-empty password replaces the stored one.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if password == "" {
			return nil, models.NewValidationError("Password is required for a new administrator")
		}
		hash, err := s.hash(password)
		if err != nil {
			return nil, err
		}
		user := &models.User{
			Username: username,
			Password: hash,
			Status:   models.StatusApproved,
			IsAdmin:  true,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if err := s.userRepo.SetAdmin(ctx, existing.ID, true); err != nil {
		return nil, err
	}
	if password != "" {
		hash, err := s.hash(password)
		if err != nil {
			return nil, err
		}
		if err := s.userRepo.SetPassword(ctx, existing.ID, hash); err != nil {
			return nil, err
		}
	}
	return s.userRepo.GetByID(ctx, existing.ID)
}

// ListPending returns accounts awaiting approval, oldest first.
func (s *AccountService) ListPending(ctx context.Context, requester *models.User, page Page) ([]models.User, error) {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return nil, err
	}
	page = page.normalize()
	return s.userRepo.ListByStatus(ctx, models.StatusPending, page.Limit, page.Offset)
}

// FindByUsername resolves an account for operator tooling.
func (s *AccountService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User")
	}
	return user, nil
}
