package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/model"
)

// cardView is a card plus the render hints a client needs.
type cardView struct {
	deck.Card
	Scale       float64 `json:"scale"`
	Interactive bool    `json:"interactive"`
}

type stateView struct {
	Phase     deck.Phase `json:"phase"`
	Loading   bool       `json:"loading"`
	Remaining int        `json:"remaining"`
	Message   string     `json:"message,omitempty"`
	Cards     []cardView `json:"cards"`
}

func viewOf(st deck.State) stateView {
	v := stateView{
		Phase:     st.Phase,
		Loading:   st.Loading(),
		Remaining: st.Remaining(),
		Message:   st.Message,
		Cards:     make([]cardView, len(st.Cards)),
	}
	top, hasTop := st.Top()
	for i, c := range st.Cards {
		v.Cards[i] = cardView{
			Card:        c,
			Scale:       deck.Scale(len(st.Cards) - 1 - i),
			Interactive: hasTop && c.ID == top.ID,
		}
	}
	return v
}

type drawRequest struct {
	Size int `json:"size"`
}

// mapError converts domain errors into status codes.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, deck.ErrInvalidDrawSize):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, deck.ErrDrawInFlight):
		return http.StatusConflict, err.Error()
	case errors.Is(err, deck.ErrClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, deck.ErrEmptyCatalog), errors.Is(err, deck.ErrService):
		return http.StatusBadGateway, deck.UserMessage
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := mapError(err)
	if status >= 500 {
		s.logger.WarnContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// sessionFor resolves :id, writing the error response when it fails.
func (s *Server) sessionFor(c *gin.Context) (*session, bool) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

// bindDrawSize reads an optional {"size": n} body.
func (s *Server) bindDrawSize(c *gin.Context) (int, bool) {
	var req drawRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return 0, false
		}
	}
	if req.Size == 0 {
		req.Size = s.drawSize
	}
	if req.Size < 0 || req.Size > model.MaxDrawSize {
		s.fail(c, deck.ErrInvalidDrawSize)
		return 0, false
	}
	return req.Size, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleCreateDeck(c *gin.Context) {
	size, ok := s.bindDrawSize(c)
	if !ok {
		return
	}
	sess, err := s.sessions.create()
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := sess.ctrl.Initialize(c.Request.Context(), size); err != nil {
		status, msg := mapError(err)
		// The session survives a failed draw so the client can retry.
		c.JSON(status, gin.H{"id": sess.id, "error": msg, "state": viewOf(sess.ctrl.Snapshot())})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": sess.id, "state": viewOf(sess.ctrl.Snapshot())})
}

func (s *Server) handleGetDeck(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.id, "state": viewOf(sess.ctrl.Snapshot())})
}

func (s *Server) handleDeleteDeck(c *gin.Context) {
	if err := s.sessions.remove(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDraw(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	size, ok := s.bindDrawSize(c)
	if !ok {
		return
	}
	if err := sess.ctrl.Initialize(c.Request.Context(), size); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"id": sess.id, "error": msg, "state": viewOf(sess.ctrl.Snapshot())})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.id, "state": viewOf(sess.ctrl.Snapshot())})
}

func (s *Server) handleFlip(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	changed := sess.ctrl.Flip(c.Param("card"))
	c.JSON(http.StatusOK, gin.H{"changed": changed, "state": viewOf(sess.ctrl.Snapshot())})
}

func (s *Server) handleSwipe(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing direction field"})
		return
	}
	dir, err := deck.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changed := sess.ctrl.RemoveTop(dir)
	c.JSON(http.StatusOK, gin.H{"changed": changed, "state": viewOf(sess.ctrl.Snapshot())})
}

type pointerRequest struct {
	Type string  `json:"type" binding:"required"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type releaseView struct {
	Swiped    bool       `json:"swiped"`
	Direction string     `json:"direction,omitempty"`
	Delta     deck.Point `json:"delta"`
}

func (s *Server) handlePointer(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing type field"})
		return
	}
	p := deck.Point{X: req.X, Y: req.Y}

	sess.mu.Lock()
	resp := gin.H{}
	switch req.Type {
	case "down":
		resp["accepted"] = sess.gesture.Press(p)
	case "move":
		sess.gesture.Move(p)
	case "up", "leave":
		var r deck.Release
		if req.Type == "up" {
			r = sess.gesture.Release()
		} else {
			r = sess.gesture.Cancel()
		}
		rv := releaseView{Swiped: r.Swiped, Delta: r.Delta}
		if r.Swiped {
			rv.Direction = r.Direction.String()
		}
		resp["release"] = rv
	default:
		sess.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of down, move, up, leave"})
		return
	}
	resp["dragging"] = sess.gesture.Dragging()
	resp["delta"] = sess.gesture.Delta()
	if top, ok := sess.ctrl.Top(); ok {
		resp["top_pose"] = sess.gesture.Transform(top)
	}
	sess.mu.Unlock()

	resp["state"] = viewOf(sess.ctrl.Snapshot())
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerdicts(c *gin.Context) {
	if s.verdicts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verdict log disabled"})
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	tally, err := s.verdicts.VerdictTally(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	top, err := s.verdicts.TopLiked(ctx, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"likes":     tally.Likes,
		"passes":    tally.Passes,
		"top_liked": top,
	})
}
