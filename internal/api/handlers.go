package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chefia/internal/apperrors"
	"chefia/internal/menu"
	"chefia/internal/models"
)

type providerView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	Configured bool     `json:"configured"`
}

func (s *Server) handleListProviders(c *gin.Context) {
	providers := s.models.Providers()
	out := make([]providerView, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerView{
			ID:         p.ID,
			Name:       p.Name,
			Models:     p.Models,
			Configured: s.models.HasKey(p.ID),
		})
	}
	c.JSON(http.StatusOK, out)
}

type startSessionRequest struct {
	UserName string `json:"user_name"`
}

func (s *Server) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, apperrors.BadRequest("invalid request body"))
		return
	}

	sess, err := s.sessions.Start(req.UserName)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.issuer.Issue(sess.ID, sess.UserName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess, "token": token})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.sessions.Get(sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "configured": s.models.HasKey(sess.Provider)})
}

type updateSessionRequest struct {
	UserName *string `json:"user_name"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperrors.BadRequest("invalid request body"))
		return
	}
	id := sessionID(c)

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.UserName != nil {
		if sess, err = s.sessions.Rename(id, *req.UserName); err != nil {
			s.fail(c, err)
			return
		}
	}
	if req.Provider != "" || req.Model != "" {
		if req.Provider == "" || req.Model == "" {
			s.fail(c, apperrors.Validation("provider and model must be set together"))
			return
		}
		if sess, err = s.sessions.SetProvider(id, req.Provider, req.Model); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "configured": s.models.HasKey(sess.Provider)})
}

func (s *Server) handleListEntries(c *gin.Context) {
	entries, err := s.sessions.Entries(sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleAddEntry(c *gin.Context) {
	var e models.Entry
	if err := c.ShouldBindJSON(&e); err != nil {
		s.fail(c, apperrors.BadRequest("invalid entry body"))
		return
	}
	created, err := s.sessions.AddEntry(sessionID(c), e)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateEntry(c *gin.Context) {
	entryID, ok := s.entryID(c)
	if !ok {
		return
	}
	var e models.Entry
	if err := c.ShouldBindJSON(&e); err != nil {
		s.fail(c, apperrors.BadRequest("invalid entry body"))
		return
	}
	e.ID = entryID
	updated, err := s.sessions.UpdateEntry(sessionID(c), e)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	entryID, ok := s.entryID(c)
	if !ok {
		return
	}
	if err := s.sessions.DeleteEntry(sessionID(c), entryID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearEntries(c *gin.Context) {
	if err := s.sessions.ClearEntries(sessionID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) entryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		s.fail(c, apperrors.BadRequest("invalid entry id"))
		return 0, false
	}
	return uint(id), true
}

// analysisView is the JSON shape of an analysis.
type analysisView struct {
	*menu.Analysis
	Counts   map[string]int `json:"counts"`
	Warnings []string       `json:"warnings"`
}

func viewOf(a *menu.Analysis) analysisView {
	warnings := a.Report.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	return analysisView{Analysis: a, Counts: a.CountsByName(), Warnings: warnings}
}

// dashboardAnalysis loads and records the session's current analysis.
func (s *Server) dashboardAnalysis(c *gin.Context) (*menu.Analysis, bool) {
	a, err := s.sessions.Analysis(sessionID(c))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	s.monitor.RecordAnalysis("entries", a)
	return a, true
}

func (s *Server) handleDashboard(c *gin.Context) {
	a, ok := s.dashboardAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis": viewOf(a),
		"chart":    menu.ScatterChart(a),
	})
}
