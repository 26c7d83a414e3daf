/*
Package authsdk provides a client SDK for the accounts service.

# SDKClient vs Session

  - SDKClient: registration, verification, password reset and the health
    endpoints, none of which need a session
  - Session: endpoints behind the session gate, created by Login

	client := authsdk.NewSDKClient("https://accounts.example.com")

	resp, err := client.Register(ctx, authsdk.RegisterRequest{
		Name:            "Ann",
		Email:           "ann@example.com",
		Password:        "Pw123!",
		ConfirmPassword: "Pw123!",
	})

	// The code arrives by email; non-production builds also return it.
	_, err = client.VerifyOTP(ctx, "ann@example.com", code)

	session, err := client.Login(ctx, "ann@example.com", "Pw123!")
	user, err := session.CurrentUser(ctx)

# Errors

Failures come back as *APIError carrying the HTTP status and a stable code:

	_, err := client.Login(ctx, email, password)
	if authsdk.IsCode(err, authsdk.CodeEmailNotVerified) {
		// ask the user to verify first
	}

# Thread Safety

Sessions are safe for concurrent use.
*/
package authsdk
