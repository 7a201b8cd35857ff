package moderation

import (
	"testing"

	"tdh/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		account  *models.User
		allowed  bool
		reason   Reason
		wantCode string
	}{
		{"no identity", nil, false, ReasonUnauthenticated, models.CodeUnauthorized},
		{"zero id", &models.User{}, false, ReasonUnauthenticated, models.CodeUnauthorized},
		{"pending", &models.User{ID: 1, Status: models.StatusPending}, false, ReasonPendingApproval, models.CodePendingApproval},
		{"approved", &models.User{ID: 1, Status: models.StatusApproved}, true, ReasonNone, ""},
		{"pending admin", &models.User{ID: 1, Status: models.StatusPending, IsAdmin: true}, true, ReasonNone, ""},
		{"unknown status", &models.User{ID: 1, Status: "suspended"}, false, ReasonNotApproved, models.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.account)
			assert.Equal(t, tt.allowed, d.Allowed())
			assert.Equal(t, tt.reason, d.Reason)
			if tt.allowed {
				assert.NoError(t, d.Err())
				return
			}
			assert.True(t, models.IsCode(d.Err(), tt.wantCode))
		})
	}
}

func TestEvaluate_PendingCarriesRedirect(t *testing.T) {
	err := Evaluate(&models.User{ID: 3, Status: models.StatusPending}).Err()
	var appErr *models.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, "/pending", appErr.Redirect)
}

func TestRequireAdmin(t *testing.T) {
	assert.Equal(t, ReasonUnauthenticated, RequireAdmin(nil).Reason)
	assert.Equal(t, ReasonNotAdmin, RequireAdmin(&models.User{ID: 1, Status: models.StatusApproved}).Reason)
	assert.True(t, RequireAdmin(&models.User{ID: 1, IsAdmin: true}).Allowed())
	assert.True(t, models.IsCode(RequireAdmin(&models.User{ID: 2}).Err(), models.CodeForbidden))
}

func TestRequireIdentity(t *testing.T) {
	assert.False(t, RequireIdentity(nil).Allowed())
	assert.True(t, RequireIdentity(&models.User{ID: 4, Status: models.StatusPending}).Allowed())
}
