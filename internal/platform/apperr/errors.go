package apperr

// Sentinel errors for the device registry and challenge lifecycle. Handlers map Kind to transport codes.
var (
	ErrUserNotFound      = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrDeviceNotFound    = New(KindNotFound, "DEVICE_NOT_FOUND", "device not found")
	ErrChallengeNotFound = New(KindNotFound, "CHALLENGE_NOT_FOUND", "challenge not found")

	ErrChallengeAlreadyResolved = New(KindState, "CHALLENGE_ALREADY_RESOLVED", "challenge already resolved")
	ErrChallengeExpired         = New(KindState, "CHALLENGE_EXPIRED", "challenge expired")

	ErrSignatureInvalid = New(KindAuth, "SIGNATURE_INVALID", "invalid signature")
	ErrKeyMismatch      = New(KindAuth, "KEY_MISMATCH", "public key does not match the registered device key")

	ErrPushNotConfigured = New(KindConfig, "PUSH_NOT_CONFIGURED", "device not registered for push notifications")

	ErrDispatchFailure   = New(KindDependency, "DISPATCH_FAILURE", "push notification dispatch failed")
	ErrStoreUnavailable  = New(KindDependency, "STORE_UNAVAILABLE", "store unavailable")
	ErrIssuerUnavailable = New(KindDependency, "ISSUER_UNAVAILABLE", "session credential could not be issued")

	ErrInvalidKey         = New(KindInvalid, "INVALID_KEY", "public key is malformed for its algorithm")
	ErrInvalidPushAddress = New(KindInvalid, "INVALID_PUSH_ADDRESS", "push address is invalid")
	ErrInvalidRequest     = New(KindInvalid, "INVALID_REQUEST", "invalid request")

	ErrRateLimited = New(KindRateLimited, "RATE_LIMITED", "too many challenges requested; try again later")
)
