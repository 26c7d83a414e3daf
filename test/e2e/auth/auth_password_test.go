//go:build e2e

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

func TestPasswordReset_WithToken(t *testing.T) {
	client := newClient()
	ctx := t.Context()
	email, userID := registerVerified(t, client)

	_, err := client.RequestPasswordReset(ctx, uniqueEmail(t))
	requireCode(t, err, authsdk.CodeNotFound)

	reset, err := client.RequestPasswordReset(ctx, email)
	require.NoError(t, err)
	require.NotEmpty(t, reset.Token)
	assert.True(t, strings.HasSuffix(reset.Link, "/"+userID+"/"+reset.Token))

	_, err = client.ResetPassword(ctx, userID, "garbage", "newpass12", "newpass12")
	requireCode(t, err, authsdk.CodeTokenInvalid)

	_, err = client.ResetPassword(ctx, userID, reset.Token, "newpass12", "mismatch")
	requireCode(t, err, authsdk.CodeValidationFailed)

	_, err = client.ResetPassword(ctx, userID, reset.Token, "newpass12", "newpass12")
	require.NoError(t, err)

	_, err = client.Login(ctx, email, testPassword)
	requireCode(t, err, authsdk.CodeInvalidCredentials)

	_, err = client.Login(ctx, email, "newpass12")
	require.NoError(t, err)
}

func TestPasswordReset_SessionTokenRejected(t *testing.T) {
	client := newClient()
	ctx := t.Context()
	email, userID := registerVerified(t, client)

	session, err := client.Login(ctx, email, testPassword)
	require.NoError(t, err)

	_, err = client.ResetPassword(ctx, userID, session.Token(), "newpass12", "newpass12")
	requireCode(t, err, authsdk.CodeTokenInvalid)
}

func TestPasswordReset_Direct(t *testing.T) {
	client := newClient()
	ctx := t.Context()
	email, _ := registerVerified(t, client)

	_, err := client.ResetPasswordDirect(ctx, authsdk.DirectResetRequest{
		Email: email, Password: "newpass12", ConfirmPassword: "newpass12",
	})
	requireCode(t, err, authsdk.CodeValidationFailed)

	_, err = client.ResetPasswordDirect(ctx, authsdk.DirectResetRequest{
		Email: email, OTP: "123456", Password: "newpass12", ConfirmPassword: "newpass12",
	})
	requireCode(t, err, authsdk.CodeOTPInvalidOrExpired)

	check, err := client.CheckEmail(ctx, email)
	require.NoError(t, err)
	require.NotEmpty(t, check.OTP)

	_, err = client.ResetPasswordDirect(ctx, authsdk.DirectResetRequest{
		Email: email, OTP: check.OTP, Password: "newpass12", ConfirmPassword: "newpass12",
	})
	require.NoError(t, err)

	_, err = client.Login(ctx, email, "newpass12")
	require.NoError(t, err)
}

func TestChangePassword_ByEmail(t *testing.T) {
	client := newClient()
	ctx := t.Context()
	email, _ := registerVerified(t, client)

	_, err := client.ChangePasswordByEmail(ctx, authsdk.ChangePasswordByEmailRequest{
		Email: email, OldPassword: "wrong-old", NewPassword: "newpass12",
	})
	requireCode(t, err, authsdk.CodeInvalidCredentials)

	_, err = client.ChangePasswordByEmail(ctx, authsdk.ChangePasswordByEmailRequest{
		Email: email, OldPassword: testPassword, NewPassword: "newpass12",
	})
	require.NoError(t, err)

	_, err = client.Login(ctx, email, "newpass12")
	require.NoError(t, err)
}

func TestChangePassword_WithSession(t *testing.T) {
	client := newClient()
	ctx := t.Context()
	email, _ := registerVerified(t, client)

	session, err := client.Login(ctx, email, testPassword)
	require.NoError(t, err)

	staged, err := session.RequestChangePassword(ctx, "newpass12", "newpass12")
	require.NoError(t, err)
	require.NotEmpty(t, staged.OTP)

	// Nothing changes until the code is confirmed.
	_, err = client.Login(ctx, email, testPassword)
	require.NoError(t, err)

	_, err = session.ConfirmChangePassword(ctx, "not-a-code")
	requireCode(t, err, authsdk.CodeOTPInvalidOrExpired)

	_, err = session.ConfirmChangePassword(ctx, staged.OTP)
	require.NoError(t, err)

	_, err = client.Login(ctx, email, "newpass12")
	require.NoError(t, err)

	_, err = session.ConfirmChangePassword(ctx, staged.OTP)
	requireCode(t, err, authsdk.CodeOTPInvalidOrExpired)
}
