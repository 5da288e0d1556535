package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	finerr "github.com/claracenn/finlite/internal/errors"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/pipeline"
)

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(c *gin.Context) {
	st := s.pipe.Status()
	c.JSON(http.StatusOK, StatusResponse{
		Status:           "running",
		ChunksLoaded:     st.ChunksLoaded,
		FormulaTemplates: s.formulas.Len(),
		HasIndex:         st.HasIndex,
		SampleChunks:     st.SampleChunks,
	})
}

// handleInitialize handles POST /initialize.
func (s *Server) handleInitialize(c *gin.Context) {
	var req InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, finerr.InvalidInput("malformed request body", err))
		return
	}

	count, err := s.pipe.Initialize(c.Request.Context(), req.Path)
	if err != nil {
		slog.Warn("initialize_failed",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, InitializeResponse{Status: "index rebuilt", Snippets: count})
}

// handleChat handles POST /chat.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, finerr.InvalidInput("malformed request body", err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(c, finerr.InvalidInput("prompt is required", nil))
		return
	}

	result, err := s.pipe.Query(c.Request.Context(), pipelineRequest(req))
	if err != nil {
		slog.Warn("chat_failed", slog.String("error", err.Error()))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: result.Answer, Snippets: result.Snippets})
}

// handleHistory handles GET /history.
func (s *Server) handleHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 5)
	items, err := s.histLog.List(limit)
	if err != nil {
		writeError(c, finerr.InternalError("history read failed", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

// handleHistoryGrouped handles GET /history/grouped and /history/unified.
func (s *Server) handleHistoryGrouped(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	groups, err := s.histLog.Grouped(limit)
	if err != nil {
		writeError(c, finerr.InternalError("history read failed", err))
		return
	}
	c.JSON(http.StatusOK, groups)
}

// handleHistorySession handles GET /history/session/:session_id.
func (s *Server) handleHistorySession(c *gin.Context) {
	view, err := s.histLog.Session(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Session not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleHistoryItem handles GET /history/:id.
func (s *Server) handleHistoryItem(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, finerr.InvalidInput("invalid history id", err))
		return
	}

	rec, err := s.histLog.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleHistoryOpen handles POST /history/open: opens a session by id, or
// resolves a single record id to its session when it has one.
func (s *Server) handleHistoryOpen(c *gin.Context) {
	var req HistoryOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, finerr.InvalidInput("malformed request body", err))
		return
	}

	if sid := strings.TrimSpace(req.SessionID); sid != "" {
		view, err := s.histLog.Session(sid)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Session not found"})
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	if req.ID != nil {
		rec, err := s.histLog.Get(*req.ID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
			return
		}
		if rec.SessionID != "" {
			if view, err := s.histLog.Session(rec.SessionID); err == nil {
				c.JSON(http.StatusOK, view)
				return
			}
		}
		c.JSON(http.StatusOK, rec)
		return
	}

	writeError(c, finerr.InvalidInput("session_id or id required", nil))
}

// handleFormulaTemplates handles GET /formula-templates.
func (s *Server) handleFormulaTemplates(c *gin.Context) {
	templates := []gin.H{}
	for _, name := range s.formulas.Names() {
		_, tpl, _ := s.formulas.Get(name)
		templates = append(templates, gin.H{"name": name, "formula": tpl.Formula})
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
}

// handleFormulaTemplate handles GET /formula-template/:name.
func (s *Server) handleFormulaTemplate(c *gin.Context) {
	name, tpl, ok := s.formulas.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("Formula template '%s' not found", c.Param("name")),
		})
		return
	}

	c.JSON(http.StatusOK, FormulaTemplateResponse{
		Name:        name,
		Formula:     tpl.Formula,
		Description: tpl.Description,
	})
}

// handleFormulaHelper handles POST /formula-helper: predefined templates
// first, LLM generation as the fallback.
func (s *Server) handleFormulaHelper(c *gin.Context) {
	var req FormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, finerr.InvalidInput("malformed request body", err))
		return
	}

	if key := s.formulas.Match(req.Prompt); key != "" {
		_, tpl, _ := s.formulas.Get(key)
		logged := fmt.Sprintf("**Formula Explanation:**\n%s\n\n**Formula:**\n`%s`", tpl.Description, tpl.Formula)
		s.pipe.LogInteraction(c.Request.Context(),
			history.NewRecord(req.Prompt, nil, logged, req.SessionID, "formula"))

		c.JSON(http.StatusOK, FormulaResponse{Explanation: tpl.Description, Formula: tpl.Formula})
		return
	}

	formulaPrompt := fmt.Sprintf("You are an Excel formula expert. Please answer the question: %s.\n"+
		"Provide concisely:\n"+
		"1. Brief explanation of the suggested formula (1-2 sentences)\n"+
		"2. Excel formula syntax\n", req.Prompt)

	answer, err := s.pipe.Generate(c.Request.Context(), formulaPrompt, false)
	if err != nil {
		writeError(c, err)
		return
	}

	s.pipe.LogInteraction(c.Request.Context(),
		history.NewRecord(req.Prompt, nil, answer, req.SessionID, "formula"))

	c.JSON(http.StatusOK, FormulaResponse{Explanation: answer, Formula: "See explanation above"})
}

// pipelineRequest converts the HTTP DTO to a pipeline request.
func pipelineRequest(req ChatRequest) pipeline.QueryRequest {
	return pipeline.QueryRequest{
		Prompt:        req.Prompt,
		Detailed:      req.Detailed,
		K:             req.K,
		SessionID:     req.SessionID,
		ExtraSnippets: req.Snippets,
	}
}

// queryInt parses an integer query parameter with a default.
func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
