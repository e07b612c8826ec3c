package signin

// Callback error codes arrive in the ?error= query parameter after a redirect.
const (
	CodeSignin                = "Signin"
	CodeOAuthSignin           = "OAuthSignin"
	CodeOAuthCallback         = "OAuthCallback"
	CodeOAuthCreateAccount    = "OAuthCreateAccount"
	CodeEmailCreateAccount    = "EmailCreateAccount"
	CodeCallback              = "Callback"
	CodeOAuthAccountNotLinked = "OAuthAccountNotLinked"
	CodeEmailSignin           = "EmailSignin"
	CodeCredentialsSignin     = "CredentialsSignin"
	// CodeVerification has no entry of its own and renders the default message.
	CodeVerification = "Verification"
	callbackDefault  = "default"
)

// Application error codes travel in the shared error context.
const (
	CodeEmailAlreadyInUse       = "email-already-in-use"
	CodeDatabaseError           = "database-error"
	CodeRefreshAccessTokenError = "RefreshAccessTokenError"
	CodeUnauthorized            = "Unauthorized"
	CodeUnsupportedProvider     = "UnsupportedProviderError"
	CodeUpdateUserError         = "UpdateUserError"
	CodeNotAllowedAccess        = "NotAllowedAccess"
	CodeInvalidError            = "InvalidError"
	// CodeUnexpected is not mapped on purpose: it always resolves to GenericErrorMessage.
	CodeUnexpected = "UnexpectedError"
)

// GenericErrorMessage is shown when an application error has neither a mapping nor a raw message.
const GenericErrorMessage = "Unexpected Error Occurred. Please try again."

var callbackMessages = map[string]string{
	CodeSignin:                "Try signing with a different account.",
	CodeOAuthSignin:           "Try signing with a different account.",
	CodeOAuthCallback:         "Try signing with a different account.",
	CodeOAuthCreateAccount:    "Try signing with a different account.",
	CodeEmailCreateAccount:    "Try signing with a different account.",
	CodeCallback:              "Try signing with a different account.",
	CodeOAuthAccountNotLinked: "To confirm your identity, sign in with the same account you used originally.",
	CodeEmailSignin:           "Check your email address.",
	CodeCredentialsSignin:     "Sign in failed. Check the details you provided are correct.",
	callbackDefault:           "Unable to sign in.",
}

var applicationMessages = map[string]string{
	CodeEmailAlreadyInUse:       "The email is already in use. Please use a different email.",
	CodeDatabaseError:           "The signin process failed. Please try again later.",
	CodeRefreshAccessTokenError: "Unable to refresh access token, Please sign in again.",
	CodeUnauthorized:            "Unauthorized access, Please sign in again.",
	CodeUnsupportedProvider:     "Unsupported provider, Please sign in again.",
	CodeUpdateUserError:         "Unable to update your account, Please try again.",
	CodeNotAllowedAccess:        "You are not allowed to access that page. Please sign in.",
	CodeInvalidError:            "Invalid Error Occurred, Please try again.",
}

// ErrorContext is the shared application error carried between requests.
type ErrorContext struct {
	ErrorName    string `json:"errorName"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ResolveCallback maps a ?error= code. An empty code yields no message; an
// unknown code yields the callback table's default entry.
func ResolveCallback(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	if msg, ok := callbackMessages[code]; ok {
		return msg, true
	}
	return callbackMessages[callbackDefault], true
}

// Resolve maps an application error: table first, then the raw message, then
// GenericErrorMessage.
func Resolve(ec *ErrorContext) (string, bool) {
	if ec == nil || ec.ErrorName == "" {
		return "", false
	}
	if msg, ok := applicationMessages[ec.ErrorName]; ok {
		return msg, true
	}
	if ec.ErrorMessage != "" {
		return ec.ErrorMessage, true
	}
	return GenericErrorMessage, true
}

// IsApplicationCode reports whether code has its own application message.
func IsApplicationCode(code string) bool {
	_, ok := applicationMessages[code]
	return ok
}
