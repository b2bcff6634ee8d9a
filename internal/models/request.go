package models

type CredentialsRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret"`
}

type PromptRequest struct {
	Prompt string `json:"prompt" example:"vintage movie poster"`
}

type GenerateRequest struct {
	// Optional; replaces the workspace prompt before generating.
	Prompt *string `json:"prompt,omitempty" example:"vintage movie poster"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
