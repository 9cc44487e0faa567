package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the /health payload.
type Status struct {
	OK             bool   `json:"ok"`
	Identification string `json:"identification"`
	Diagnosis      string `json:"diagnosis"`
	History        string `json:"history"`
	Database       string `json:"database,omitempty"`
}

// Service reports which providers and stores the process runs with.
type Service struct {
	Identification string
	Diagnosis      string
	History        string
	DB             Pinger
	PingTimeout    time.Duration
}

// NewService constructs a new health service.
func NewService(identification, diagnosis, history string, db Pinger) *Service {
	return &Service{
		Identification: identification,
		Diagnosis:      diagnosis,
		History:        history,
		DB:             db,
		PingTimeout:    2 * time.Second,
	}
}

// Status checks the database, when there is one, and returns the payload.
// OK is false only when the database does not answer.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		OK:             true,
		Identification: s.Identification,
		Diagnosis:      s.Diagnosis,
		History:        s.History,
	}
	if s.DB == nil {
		return st
	}
	timeout := s.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		st.OK = false
		st.Database = "unreachable"
		return st
	}
	st.Database = "ok"
	return st
}
