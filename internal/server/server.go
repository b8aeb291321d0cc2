// Package server exposes the review pipeline over HTTP: a direct
// analysis endpoint and the merge request webhook receiver.
package server

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"veritas/internal/parser"
	"veritas/internal/review"
	"veritas/internal/scm"
)

// maxUploadBytes caps the size of a directly submitted file.
const maxUploadBytes = 1 << 20

// Analyzer handles merge request events in the background.
type Analyzer interface {
	Analyze(ctx context.Context, ev scm.MergeRequestEvent) error
}

type Server struct {
	pipeline      *review.Pipeline
	analyzer      Analyzer
	webhookSecret string
	log           zerolog.Logger
}

func New(pipeline *review.Pipeline, analyzer Analyzer, webhookSecret string, log zerolog.Logger) *Server {
	return &Server{
		pipeline:      pipeline,
		analyzer:      analyzer,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.HEAD("/healthz", s.handleHealth)
	router.POST("/analyze", s.handleAnalyze)
	router.POST("/webhook/gitlab", s.handleGitLabWebhook)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type analyzeRequest struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

type analyzeResponse struct {
	Subject     string                   `json:"subject"`
	Strategy    string                   `json:"strategy"`
	Findings    []review.Finding         `json:"findings"`
	Report      string                   `json:"report"`
	Diagnostics review.ExtractionOutcome `json:"diagnostics"`
}

// handleAnalyze reviews one file submitted either as a multipart upload
// under the "file" field or as a JSON body with filename and code.
func (s *Server) handleAnalyze(c *gin.Context) {
	name, code, ok := s.readSubmission(c)
	if !ok {
		return
	}
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty code submission"})
		return
	}

	// Files in unsupported languages are still reviewed, just without
	// syntax checking or decomposition.
	dec, err := parser.ForFile(name)
	if err != nil {
		dec = nil
	}

	state := s.pipeline.Run(c.Request.Context(), review.Subject{Name: name, Source: code}, dec)

	c.JSON(http.StatusOK, analyzeResponse{
		Subject:     state.Subject,
		Strategy:    string(state.Strategy),
		Findings:    state.AllFindings(),
		Report:      state.Report,
		Diagnostics: state.Diagnostics,
	})
}

func (s *Server) readSubmission(c *gin.Context) (name, code string, ok bool) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			return "", "", false
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			return "", "", false
		}
		return file.Filename, string(data), true
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a file upload or a JSON body with filename and code"})
		return "", "", false
	}
	return req.Filename, req.Code, true
}

// handleGitLabWebhook acknowledges immediately and analyzes in the
// background so slow model calls never block webhook delivery.
func (s *Server) handleGitLabWebhook(c *gin.Context) {
	if s.webhookSecret != "" {
		token := c.GetHeader("X-Gitlab-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	ev, ok, err := scm.ParseMergeRequestEvent(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	go func() {
		ctx := context.Background()
		if err := s.analyzer.Analyze(ctx, ev); err != nil {
			s.log.Error().Err(err).Int("project_id", ev.ProjectID).Int("mr_iid", ev.MRIID).Msg("merge request analysis failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
