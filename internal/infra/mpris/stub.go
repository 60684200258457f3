//go:build !linux

package mpris

// Server is a no-op on non-Linux platforms.
type Server struct{}

// Serve returns a no-op server on non-Linux platforms.
func Serve(string, *Session) (*Server, error) {
	return &Server{}, nil
}

// Close is a no-op on non-Linux platforms.
func (s *Server) Close() error {
	return nil
}
