package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/identity"
)

func TestEnvSessionStore(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	empty := NewEnvSessionStore(&config.Config{}, &out)
	_, err := empty.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)
	require.NoError(t, empty.Delete(ctx))
	assert.Empty(t, out.String(), "nothing to unset")

	store := NewEnvSessionStore(&config.Config{UserID: 3, Token: "tok", RefreshToken: "ref"}, &out)
	sess, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.UserID)
	assert.Equal(t, "ref", sess.RefreshToken)

	assert.ErrorIs(t, store.Save(ctx, &identity.Session{}), identity.ErrNoSession)

	require.NoError(t, store.Save(ctx, &identity.Session{Identity: identity.Identity{UserID: 4, BearerToken: "new"}}))
	assert.Equal(t, "export TURUMI_USER_ID=4\nexport TURUMI_TOKEN=new\n", out.String())

	require.NoError(t, store.Delete(ctx))
	assert.Contains(t, out.String(), "unset TURUMI_USER_ID")
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}
