package platform

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestRetryTransientRetriesOnce(t *testing.T) {
	calls := 0
	retries := 0
	v, err := RetryTransient(context.Background(), fastPolicy(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.NewTransientError("create role", fmt.Errorf("502"))
		}
		return "ok", nil
	}, func(error) { retries++ })

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retries)
}

func TestRetryTransientGivesUp(t *testing.T) {
	calls := 0
	_, err := RetryTransient(context.Background(), fastPolicy(), func() (int, error) {
		calls++
		return 0, errors.NewTransientError("create channel", nil)
	}, nil)

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestRetryTransientStopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := RetryTransient(context.Background(), fastPolicy(), func() (int, error) {
		calls++
		return 0, errors.NewPermissionDeniedError("create channel", nil)
	}, nil)

	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
	assert.Equal(t, 1, calls)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   errors.ErrorCode
	}{
		{401, errors.ErrCodePermissionDenied},
		{403, errors.ErrCodePermissionDenied},
		{404, errors.ErrCodeNotFound},
		{429, errors.ErrCodeTransient},
		{502, errors.ErrCodeTransient},
		{400, errors.ErrCodePlatform},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyStatus("act", tt.status, nil)
			assert.Equal(t, tt.want, errors.CodeOf(err))
		})
	}
}

func TestChannelAndMemberHelpers(t *testing.T) {
	ch := Channel{Overrides: []Override{{TargetID: "m1", Deny: PermView}}}
	o, ok := ch.Override("m1")
	require.True(t, ok)
	assert.Equal(t, PermView, o.Deny)
	_, ok = ch.Override("m2")
	assert.False(t, ok)

	m := Member{RoleIDs: []string{"r1"}}
	assert.True(t, m.HasRole("r1"))
	assert.False(t, m.HasRole("r2"))

	assert.Equal(t, "<@42>", Mention("42"))
	assert.True(t, *Bool(true))
}
