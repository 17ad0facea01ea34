package transport

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OAuthRequest struct {
	Provider string `json:"provider"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}
