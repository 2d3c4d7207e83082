package worker

import (
	"context"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// UserLookup resolves a user's directory record, used here to re-fetch a
// push token that may have rotated since ingress resolved it.
type UserLookup interface {
	Get(ctx context.Context, userID string) (*dtos.UserDirectoryData, error)
}

// PushRecipientResolver re-fetches the device token; email workers have no
// equivalent and trust the message's resolved address instead.
type PushRecipientResolver struct {
	Users UserLookup
}

func (r *PushRecipientResolver) Recipient(ctx context.Context, userID string) (string, error) {
	user, err := r.Users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.PushToken, nil
}
