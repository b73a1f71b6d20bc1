package gemini

// Content is one turn of a generateContent conversation.
type Content struct {
	Role  string `json:"role,omitempty"` // user or model
	Parts []Part `json:"parts"`
}

// Part is a single text fragment within a Content.
type Part struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig carries sampling parameters for a request.
type GenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

// ChatRequest is a request to the generateContent endpoint.
type ChatRequest struct {
	Model            string            `json:"-"` // Path component, not part of the body
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata reports token accounting for a request.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// ChatResponse is a response from the generateContent endpoint.
type ChatResponse struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Text returns the first candidate's text parts joined together, or the
// empty string when the response carries no candidates.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}

	var out string
	for _, part := range r.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// APIError is the error envelope the Gemini API returns on failures.
type APIError struct {
	ErrorDetail *ErrorDetails `json:"error,omitempty"`
}

// ErrorDetails contains details about an API error.
type ErrorDetails struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"` // e.g. RESOURCE_EXHAUSTED, INVALID_ARGUMENT
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.ErrorDetail != nil {
		return e.ErrorDetail.Message
	}
	return "unknown API error"
}

// Float64Ptr creates a float64 pointer from a value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr creates an int pointer from a value.
func IntPtr(v int) *int {
	return &v
}
