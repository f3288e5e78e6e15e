package provider

// Wire types for the provider's token API. Field layout follows the
// GoTrue-style endpoints the deployment runs against.

// passwordGrantRequest is the body of POST /token?grant_type=password
type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshGrantRequest is the body of POST /token?grant_type=refresh_token
type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// wireUser is the provider's user record
type wireUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

// tokenResponse is the successful answer of both grant endpoints
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

// errorResponse is the provider's failure body. Deployments differ in which
// fields they fill, so classification looks at all of them.
type errorResponse struct {
	ErrorField  string `json:"error"`
	Description string `json:"error_description"`
	ErrorCode   string `json:"error_code"`
	Msg         string `json:"msg"`
}

func (e *errorResponse) message() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Msg != "":
		return e.Msg
	case e.ErrorField != "":
		return e.ErrorField
	default:
		return "unknown provider error"
	}
}
