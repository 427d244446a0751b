// Package processing is the acknowledgment core behind POST /process.
package processing

const (
	// StatusProcessed is the only status a processing response carries.
	StatusProcessed = "processed"
	messagePrefix   = "Processed query: "
)

// Request is the validated body of POST /process.
type Request struct {
	Query string `json:"query"`
}

// Response is the fixed-shape acknowledgment returned for a query.
type Response struct {
	Query   string `json:"query"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Service holds no state. The query arrives already validated.
type Service struct{}

// NewService creates a new processing service
func NewService() *Service {
	return &Service{}
}

// Handle echoes q in a fixed-shape response. It never fails.
func (s *Service) Handle(q string) Response {
	return Response{
		Query:   q,
		Status:  StatusProcessed,
		Message: messagePrefix + q,
	}
}
