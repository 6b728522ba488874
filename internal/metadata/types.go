package metadata

import "time"

// User is a platform account.
type User struct {
	ID          string
	Login       string
	DisplayName string
}

// LiveStream is an ongoing broadcast session.
type LiveStream struct {
	ID        string // session id, matched against Video.StreamID
	UserLogin string
	Title     string
	StartedAt time.Time
}

// Video is an archived broadcast.
type Video struct {
	ID        string
	StreamID  string
	UserLogin string
	Title     string
	CreatedAt time.Time
}

// API response types (unexported, internal to client)

type apiEnvelope[T any] struct {
	Data []T `json:"data"`
}

type apiUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type apiStream struct {
	ID        string `json:"id"`
	UserLogin string `json:"user_login"`
	Title     string `json:"title"`
	StartedAt string `json:"started_at"`
}

type apiVideo struct {
	ID        string `json:"id"`
	StreamID  string `json:"stream_id"`
	UserLogin string `json:"user_login"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func convertUser(u apiUser) User {
	return User{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName}
}

func convertStream(s apiStream) LiveStream {
	return LiveStream{
		ID:        s.ID,
		UserLogin: s.UserLogin,
		Title:     s.Title,
		StartedAt: parseTime(s.StartedAt),
	}
}

func convertVideo(v apiVideo) Video {
	return Video{
		ID:        v.ID,
		StreamID:  v.StreamID,
		UserLogin: v.UserLogin,
		Title:     v.Title,
		CreatedAt: parseTime(v.CreatedAt),
	}
}
