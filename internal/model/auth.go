package model

// AuthRequest is the body of POST /sensors-auth. Both fields are pointers so
// that a missing field can be told apart from an empty string.
type AuthRequest struct {
	ProjectID    *string `json:"projectId" binding:"required"`
	RefreshToken *string `json:"refreshToken" binding:"required"`
}

// AuthResponse carries the issued access token.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}
