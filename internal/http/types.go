package http

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// RootResponse is the response body for GET /.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
