package authz

import (
	"context"
	"errors"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/models"
)

// UserStoreChecker adapts an auth.UserStore to RelationshipChecker
type UserStoreChecker struct {
	Users auth.UserStore
}

func (c UserStoreChecker) LoadUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := c.Users.FindUserByID(ctx, userID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}
