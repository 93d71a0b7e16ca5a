package community

import "time"

// Post is one feed entry.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment belongs to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a message thread between participants.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	LastMessage  string    `json:"last_message"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Notification is an unseen-or-seen alert for a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is a user's public profile.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Achievement is an earned badge.
type Achievement struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earned_at"`
}

// Activity is one item of a user's activity feed.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Verb      string    `json:"verb"`
	ObjectID  string    `json:"object_id"`
	CreatedAt time.Time `json:"created_at"`
}
