package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/amishk599/rankwatch/internal/model"
)

// employerID accepts the company id as a JSON string or number.
type employerID string

func (e *employerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = employerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("companyId must be a string or a number")
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return errors.New("companyId must be an integer")
	}
	*e = employerID(n.String())
	return nil
}

type analyzeRequest struct {
	CompanyID employerID `json:"companyId"`
}

type analyzeResponse struct {
	JobID          string          `json:"jobId"`
	CompanyID      string          `json:"companyId"`
	Message        string          `json:"message,omitempty"`
	TotalVacancies int             `json:"totalVacancies"`
	Vacancies      []model.Posting `json:"vacancies"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const noPostingsMessage = "no active vacancies found for this company"

func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: `request body must be JSON with a "companyId"`, Details: err.Error()})
	}
	if req.CompanyID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: `request body must include "companyId"`})
	}

	jobID := s.newID()
	employer := string(req.CompanyID)
	s.logger.Info("analysis requested", "job_id", jobID, "employer_id", employer)

	// A client disconnect does not abandon the run.
	postings, err := s.analyzer.Run(context.WithoutCancel(c.Request().Context()), jobID, employer)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Details: err.Error()})
	}

	resp := analyzeResponse{
		JobID:          jobID,
		CompanyID:      employer,
		TotalVacancies: len(postings),
		Vacancies:      postings,
	}
	if len(postings) == 0 {
		resp.Message = noPostingsMessage
		resp.Vacancies = []model.Posting{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetJob(c echo.Context) error {
	id := c.Param("id")
	rec, err := s.jobs.Get(c.Request().Context(), id)
	if errors.Is(err, model.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "job not found", Details: id})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Details: err.Error()})
	}
	return c.JSON(http.StatusOK, rec)
}
