// Package server is the thin REST surface over per-user sessions. Everything
// of substance lives in the session's coordinator and stores; handlers only
// translate HTTP to calls and errors to status codes.
package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/filestore"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/session"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
	"github.com/pkg/errors"
)

// SessionFactory builds the per-user session on first request after login.
type SessionFactory func(c *gin.Context, userId string) (*session.Session, error)

// SessionManager owns the live sessions keyed by user id.
type SessionManager struct {
	factory        SessionFactory
	requestTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session.Session
}

func NewSessionManager(factory SessionFactory) *SessionManager {
	return &SessionManager{
		factory:  factory,
		sessions: map[string]*session.Session{},
	}
}

// SetRequestTimeout bounds every network-backed operation a handler performs.
// Zero leaves the request context deadline-free.
func (m *SessionManager) SetRequestTimeout(timeout time.Duration) {
	m.requestTimeout = timeout
}

func (m *SessionManager) sessionFor(c *gin.Context, userId string) (*session.Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userId]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.factory(c, userId)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userId]; ok {
		s.Close()
		return existing, nil
	}
	m.sessions[userId] = s
	return s, nil
}

// Logout tears down the user's session explicitly.
func (m *SessionManager) Logout(userId string) {
	m.mu.Lock()
	s, ok := m.sessions[userId]
	delete(m.sessions, userId)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func writeError(c *gin.Context, err error) {
	var blocked *model.ModerationBlockedError
	switch {
	case model.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case errors.As(err, &blocked):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"msg":           err.Error(),
			"matched_terms": blocked.MatchedTerms,
			"suggestion":    blocked.Suggestion,
		})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	default:
		Logger.Log.Error("request failed: ", err)
		c.JSON(http.StatusBadGateway, gin.H{"msg": "upstream failure, retry later"})
	}
}

func feedKeyFromRequest(c *gin.Context, userId string) (model.FeedKey, error) {
	switch c.Param("kind") {
	case "global":
		return model.GlobalFeed(), nil
	case "user":
		author := c.Query("author_id")
		if author == "" {
			author = userId
		}
		return model.AuthorFeed(author), nil
	case "gym":
		gymId, err := strconv.ParseInt(c.Query("gym_id"), 10, 64)
		if err != nil {
			return model.FeedKey{}, model.NewValidationError("gym_id must be a positive integer")
		}
		return model.LocationFeed(gymId), nil
	case "favorites":
		return model.FavoritesFeed(userId), nil
	}
	return model.FeedKey{}, model.NewValidationError("unknown feed kind %q", c.Param("kind"))
}

// RegisterRoutes binds all REST routes on the router. The "sub" header is set
// by the auth middleware.
func RegisterRoutes(router *gin.Engine, manager *SessionManager) {
	withSession := func(handler func(c *gin.Context, s *session.Session)) gin.HandlerFunc {
		return func(c *gin.Context) {
			userId := c.Request.Header.Get("sub")
			if userId == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"msg": "missing user identity"})
				return
			}
			if manager.requestTimeout > 0 {
				ctx, cancel := context.WithTimeout(c.Request.Context(), manager.requestTimeout)
				defer cancel()
				c.Request = c.Request.WithContext(ctx)
			}
			s, err := manager.sessionFor(c, userId)
			if err != nil {
				writeError(c, err)
				return
			}
			handler(c, s)
		}
	}

	router.GET("/feeds/:kind", withSession(func(c *gin.Context, s *session.Session) {
		key, err := feedKeyFromRequest(c, s.UserId)
		if err != nil {
			writeError(c, err)
			return
		}
		var snap interface{}
		if c.Query("refresh") == "true" {
			snap, err = s.Feeds.Refresh(c.Request.Context(), key)
		} else {
			snap, err = s.Feeds.FetchMore(c.Request.Context(), key)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		items := s.Feeds.Visible(key)
		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.Id
		}
		c.JSON(http.StatusOK, gin.H{
			"items": items,
			"liked": s.Feeds.LikedStatus(ids),
			"page":  snap,
		})
	}))

	type publishRequest struct {
		Body        string   `json:"body"`
		GymId       int64    `json:"gym_id"`
		VisitedDate string   `json:"visited_date"`
		MediaRefs   []string `json:"media_refs"`
		MovieRef    string   `json:"movie_ref"`
	}

	router.POST("/visit_logs", withSession(func(c *gin.Context, s *session.Session) {
		var req publishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, model.NewValidationError("malformed request body"))
			return
		}
		visited := time.Now()
		if req.VisitedDate != "" {
			parsed, err := dateparse.ParseAny(req.VisitedDate)
			if err != nil {
				writeError(c, model.NewValidationError("unparsable visited_date %q", req.VisitedDate))
				return
			}
			visited = parsed
		}
		item, err := s.Feeds.Publish(c.Request.Context(), &model.ContentItem{
			Body:        req.Body,
			GymId:       req.GymId,
			VisitedDate: visited,
			MediaRefs:   req.MediaRefs,
			MovieRef:    req.MovieRef,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}))

	type editRequest struct {
		Body        *string   `json:"body"`
		VisitedDate *string   `json:"visited_date"`
		MediaRefs   *[]string `json:"media_refs"`
		MovieRef    *string   `json:"movie_ref"`
	}

	router.PATCH("/visit_logs/:id", withSession(func(c *gin.Context, s *session.Session) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			writeError(c, model.NewValidationError("malformed visit log id"))
			return
		}
		var req editRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, model.NewValidationError("malformed request body"))
			return
		}
		edit := source.ContentEdit{
			Body:      req.Body,
			MediaRefs: req.MediaRefs,
			MovieRef:  req.MovieRef,
		}
		if req.VisitedDate != nil {
			parsed, err := dateparse.ParseAny(*req.VisitedDate)
			if err != nil {
				writeError(c, model.NewValidationError("unparsable visited_date %q", *req.VisitedDate))
				return
			}
			edit.VisitedDate = &parsed
		}
		if err := s.Feeds.Edit(c.Request.Context(), id, edit); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}))

	router.DELETE("/visit_logs/:id", withSession(func(c *gin.Context, s *session.Session) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			writeError(c, model.NewValidationError("malformed visit log id"))
			return
		}
		if err := s.Feeds.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}))

	router.POST("/visit_logs/:id/like", withSession(func(c *gin.Context, s *session.Session) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			writeError(c, model.NewValidationError("malformed visit log id"))
			return
		}
		if err := s.Feeds.Like(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}))

	router.DELETE("/visit_logs/:id/like", withSession(func(c *gin.Context, s *session.Session) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			writeError(c, model.NewValidationError("malformed visit log id"))
			return
		}
		if err := s.Feeds.Unlike(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}))

	toggle := func(c *gin.Context, s *session.Session, add bool) {
		kind := model.EdgeKind(c.Param("kind"))
		target := c.Param("target")
		var err error
		switch kind {
		case model.EdgeFavoriteUser:
			if add {
				err = s.Relationships.AddFavoriteUser(c.Request.Context(), target)
			} else {
				err = s.Relationships.RemoveFavoriteUser(c.Request.Context(), target)
			}
		case model.EdgeBlockUser:
			if add {
				err = s.Relationships.BlockUser(c.Request.Context(), target)
			} else {
				err = s.Relationships.UnblockUser(c.Request.Context(), target)
			}
		case model.EdgeFavoriteGym:
			var gymId int64
			gymId, err = strconv.ParseInt(target, 10, 64)
			if err != nil {
				err = model.NewValidationError("gym id must be a positive integer")
				break
			}
			if add {
				err = s.Relationships.AddFavoriteGym(c.Request.Context(), gymId)
			} else {
				err = s.Relationships.RemoveFavoriteGym(c.Request.Context(), gymId)
			}
		default:
			err = model.NewValidationError("unknown relationship kind %q", c.Param("kind"))
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}

	router.PUT("/relationships/:kind/:target", withSession(func(c *gin.Context, s *session.Session) {
		toggle(c, s, true)
	}))
	router.DELETE("/relationships/:kind/:target", withSession(func(c *gin.Context, s *session.Session) {
		toggle(c, s, false)
	}))

	router.GET("/relationships/blocked", withSession(func(c *gin.Context, s *session.Session) {
		if c.Query("reload") == "true" {
			if err := s.Relationships.ReloadBlockedList(c.Request.Context()); err != nil {
				writeError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"entries": s.Relationships.BlockedListEntries()})
	}))

	router.GET("/relationships/favorites", withSession(func(c *gin.Context, s *session.Session) {
		c.JSON(http.StatusOK, gin.H{
			"users": s.Relationships.ListFavoriteUsers(),
			"gyms":  s.Relationships.ListFavoriteGyms(),
		})
	}))

	router.GET("/relationships/favorited_by", withSession(func(c *gin.Context, s *session.Session) {
		users, err := s.Relationships.FetchFavoritedBy(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}))

	router.POST("/logout", withSession(func(c *gin.Context, s *session.Session) {
		manager.Logout(s.UserId)
		c.Status(http.StatusNoContent)
	}))
}

// RegisterMediaRoutes binds the media upload route. Media is uploaded ahead of
// publishing, the returned keys go into the visit log's media_refs.
func RegisterMediaRoutes(router *gin.Engine, store filestore.MediaFileStore) {
	router.POST("/media", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			writeError(c, model.NewValidationError("missing multipart field \"file\""))
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			writeError(c, model.NewValidationError("unreadable multipart field \"file\""))
			return
		}
		defer f.Close()

		key, err := store.Store(f, filepath.Ext(fileHeader.Filename))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"key": key,
			"url": store.GetUrlFromKey(key),
		})
	})
}
