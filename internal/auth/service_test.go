package auth

import (
	"context"
	"testing"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, model.User) {
	t.Helper()
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	users := storetest.NewUsers()
	u := model.User{ID: "user-1", APIKey: "key-1", SecretHash: hash}
	users.Put(u)
	return NewService(users, "papertrade", []byte("signing-key"), time.Hour), u
}

func TestResolve(t *testing.T) {
	svc, u := newService(t)
	got, err := svc.Resolve(context.Background(), "key-1", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Resolve(context.Background(), "key-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Resolve(context.Background(), "ghost", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestListenTokenRoundTrip(t *testing.T) {
	svc, u := newService(t)
	token, err := svc.ListenToken(u)
	require.NoError(t, err)

	userID, err := svc.ParseListenToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)

	_, err = svc.ParseListenToken(token + "x")
	assert.Error(t, err)
}

func TestListenTokenWrongIssuerRejected(t *testing.T) {
	svc, u := newService(t)
	other := NewService(storetest.NewUsers(), "someone-else", []byte("signing-key"), time.Hour)
	token, err := other.ListenToken(u)
	require.NoError(t, err)
	_, err = svc.ParseListenToken(token)
	assert.Error(t, err)
}
