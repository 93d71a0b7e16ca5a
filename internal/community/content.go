package community

import (
	"context"
	"fmt"
	"strconv"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

var (
	scopeContentList     = cache.Scope{Domain: "content", Resource: "list"}
	scopeContentPost     = cache.Scope{Domain: "content", Resource: "post"}
	scopeContentComments = cache.Scope{Domain: "content", Resource: "comments"}
)

// Content serves posts, comments and likes.
type Content struct {
	conns  *connection.Manager
	cache  *cache.Manager
	calls  calls
	logger *logging.Logger
}

// NewContent creates the content service.
func NewContent(conns *connection.Manager, cacheMgr *cache.Manager, cfg Config, logger *logging.Logger) *Content {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Content{
		conns:  conns,
		cache:  cacheMgr,
		calls:  newCalls("content", cfg, logger),
		logger: logger,
	}
}

// Breaker exposes the service's circuit breaker for observability.
func (s *Content) Breaker() *resilience.Breaker {
	return s.calls.breaker
}

// ListPosts returns the newest posts, freshest-first.
func (s *Content) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 20
	}
	key := scopeContentList.Key("recent:" + strconv.Itoa(limit))

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_posts", func(ctx context.Context) (interface{}, error) {
			var posts []Post
			err := s.conns.GetClient().From("posts").
				Order("created_at", true).
				Limit(limit).
				Select(ctx, &posts)
			return posts, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	posts, ok := v.([]Post)
	if !ok {
		return nil, fmt.Errorf("content: unexpected cached type %T", v)
	}
	return posts, nil
}

// GetPost returns one post by ID.
func (s *Content) GetPost(ctx context.Context, postID string) (*Post, error) {
	key := scopeContentPost.Key(postID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "get_post", func(ctx context.Context) (interface{}, error) {
			var posts []Post
			err := s.conns.GetClient().From("posts").
				Eq("id", postID).
				Limit(1).
				Select(ctx, &posts)
			if err != nil {
				return nil, err
			}
			if len(posts) == 0 {
				return nil, fmt.Errorf("content: post %s not found", postID)
			}
			return posts[0], nil
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	post, ok := v.(Post)
	if !ok {
		return nil, fmt.Errorf("content: unexpected cached type %T", v)
	}
	return &post, nil
}

// ListComments returns a post's comments, oldest-first.
func (s *Content) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	key := scopeContentComments.Key(postID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_comments", func(ctx context.Context) (interface{}, error) {
			var comments []Comment
			err := s.conns.GetClient().From("comments").
				Eq("post_id", postID).
				Order("created_at", false).
				Select(ctx, &comments)
			return comments, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	comments, ok := v.([]Comment)
	if !ok {
		return nil, fmt.Errorf("content: unexpected cached type %T", v)
	}
	return comments, nil
}

// CreatePost writes a new post and invalidates the content domain.
func (s *Content) CreatePost(ctx context.Context, authorID, title, body string) (*Post, error) {
	v, err := s.calls.run(ctx, "create_post", func(ctx context.Context) (interface{}, error) {
		var created []Post
		err := s.conns.GetClient().From("posts").Insert(ctx, map[string]interface{}{
			"author_id": authorID,
			"title":     title,
			"body":      body,
		}, &created)
		if err != nil {
			return nil, err
		}
		if len(created) == 0 {
			return nil, fmt.Errorf("content: create returned no representation")
		}
		return created[0], nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate("content:list")
	post := v.(Post)
	return &post, nil
}

// AddComment writes a comment and invalidates the post's comment cache.
func (s *Content) AddComment(ctx context.Context, postID, authorID, body string) (*Comment, error) {
	v, err := s.calls.run(ctx, "add_comment", func(ctx context.Context) (interface{}, error) {
		var created []Comment
		err := s.conns.GetClient().From("comments").Insert(ctx, map[string]interface{}{
			"post_id":   postID,
			"author_id": authorID,
			"body":      body,
		}, &created)
		if err != nil {
			return nil, err
		}
		if len(created) == 0 {
			return nil, fmt.Errorf("content: create returned no representation")
		}
		return created[0], nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(scopeContentComments.Key(postID))
	comment := v.(Comment)
	return &comment, nil
}

// Like records a like through the platform's like RPC, which also bumps the
// post's counter remotely.
func (s *Content) Like(ctx context.Context, postID, userID string) error {
	_, err := s.calls.run(ctx, "like", func(ctx context.Context) (interface{}, error) {
		return nil, s.conns.GetClient().RPC(ctx, "like_post", map[string]string{
			"post_id": postID,
			"user_id": userID,
		}, nil)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(scopeContentPost.Key(postID))
	return nil
}

// Unlike removes a like through the platform's unlike RPC.
func (s *Content) Unlike(ctx context.Context, postID, userID string) error {
	_, err := s.calls.run(ctx, "unlike", func(ctx context.Context) (interface{}, error) {
		return nil, s.conns.GetClient().RPC(ctx, "unlike_post", map[string]string{
			"post_id": postID,
			"user_id": userID,
		}, nil)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(scopeContentPost.Key(postID))
	return nil
}
