package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"

	"chefia/internal/apperrors"
	"chefia/internal/menu"
	"chefia/internal/models"
	"chefia/internal/observability"
)

// insightInput is what every LLM call needs from the session.
type insightInput struct {
	session  *models.Session
	analysis *menu.Analysis
	model    llms.Model
}

func (s *Server) prepareInsight(id, apiKey string) (*insightInput, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	a, err := s.sessions.Analysis(id)
	if err != nil {
		return nil, err
	}
	if len(a.Items) == 0 {
		return nil, apperrors.Validation("the dataset is empty, upload or add items first")
	}
	model, err := s.models.Resolve(sess.Provider, sess.Model, apiKey)
	if err != nil {
		return nil, err
	}
	return &insightInput{session: sess, analysis: a, model: model}, nil
}

// llmContext bounds a model call by the configured timeout.
func (s *Server) llmContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LLM.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.cfg.LLM.Timeout)
}

// llmError maps a failed model call, reporting deadline hits as timeouts.
func llmError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, "the model did not answer in time")
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Unavailable(err, "the model request failed")
}

func (s *Server) handleReport(c *gin.Context) {
	in, err := s.prepareInsight(sessionID(c), c.GetHeader(apiKeyHeader))
	if err != nil {
		s.fail(c, err)
		return
	}

	extract := menu.ReportExtract(in.analysis.Items, s.extract)
	table, err := menu.EncodeTable(extract)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx, cancel := s.llmContext(c.Request.Context())
	defer cancel()

	start := time.Now()
	report, err := s.consultant.Report(ctx, in.model, in.session.UserName, table)
	s.monitor.ObserveLLM(in.session.Provider, "report", start, err)
	if err != nil {
		s.fail(c, llmError(ctx, err))
		return
	}

	observability.FromContext(c.Request.Context(), s.logger).Info("report generated",
		"provider", in.session.Provider,
		"model", in.session.Model,
		"items_sent", len(extract),
		"duration", time.Since(start),
	)
	c.JSON(http.StatusOK, gin.H{
		"report":     report,
		"provider":   in.session.Provider,
		"model":      in.session.Model,
		"items_sent": len(extract),
	})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		s.fail(c, apperrors.Validation("question is required"))
		return
	}
	id := sessionID(c)

	in, err := s.prepareInsight(id, c.GetHeader(apiKeyHeader))
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.sessions.History(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := s.llmContext(c.Request.Context())
	defer cancel()

	table, err := menu.EncodeTable(menu.ChatContext(in.analysis.Items, s.cfg.Analysis.ChatContextRows))
	if err != nil {
		s.fail(c, err)
		return
	}
	start := time.Now()
	answer, err := s.consultant.Chat(ctx, in.model, req.Question, table, history)
	s.monitor.ObserveLLM(in.session.Provider, "chat", start, err)
	if err != nil {
		s.fail(c, llmError(ctx, err))
		return
	}
	if err := s.sessions.RecordExchange(id, req.Question, answer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	history, err := s.sessions.History(sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": history})
}
