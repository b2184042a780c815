package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type LoginInput struct {
	RequestToken string `json:"request_token" jsonschema:"request token from the Kite login redirect"`
}

type LoginURLOutput struct {
	Status   string `json:"status"`
	LoginURL string `json:"login_url"`
	Message  string `json:"message"`
}

type LoginOutput struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

type MessageOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) registerAuthTools() {
	addTool(s, "get_login_url",
		"Get the Kite Connect login URL. Open it in a browser and pass the request_token from the redirect to login.",
		s.getLoginURL)
	addTool(s, "login",
		"Create a session from a request_token. The session stays valid until 06:00 IST the next morning.",
		s.login)
	addTool(s, "logout", "Invalidate the current session.", s.logout)
}

func (s *Server) getLoginURL(_ context.Context, _ struct{}) (any, error) {
	return LoginURLOutput{
		Status:   StatusSuccess,
		LoginURL: s.broker.LoginURL(),
		Message:  "Open login_url, sign in and call login with the request_token from the redirect URL",
	}, nil
}

func (s *Server) login(ctx context.Context, in LoginInput) (any, error) {
	token := strings.TrimSpace(in.RequestToken)
	if token == "" {
		return nil, errors.New("login failed: request_token is required")
	}
	sess, err := s.broker.Login(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	name := sess.UserName
	if name == "" {
		name = sess.UserID
	}
	return LoginOutput{
		Status:    StatusSuccess,
		Message:   "Logged in as " + name,
		UserID:    sess.UserID,
		UserName:  sess.UserName,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) logout(ctx context.Context, _ struct{}) (any, error) {
	if err := s.broker.Logout(ctx); err != nil {
		return nil, fmt.Errorf("logout failed: %w", err)
	}
	return MessageOutput{Status: StatusSuccess, Message: "Logged out"}, nil
}
