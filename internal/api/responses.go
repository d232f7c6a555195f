package api

import (
	"encoding/json"

	"github.com/shalteor/grade-calculator/internal/grades"
)

const (
	MessageUserNotFound = "The username does not exist."
	MessageInternal     = "An internal error occurred."
)

// StatusResponse is the {status, message} payload every grade endpoint
// answers with. Status mirrors the HTTP status code.
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error of the non-grade endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /ping.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// LoadResponse is the body of a successful GET /load/{username}.
// Categories are encoded as positional arrays:
// [id, name, weight, max_assignment_id, [[id, name, score, max], ...]].
type LoadResponse struct {
	Status      int             `json:"status"`
	Username    string          `json:"username"`
	MaxCategory int             `json:"max_category"`
	Categories  []categoryTuple `json:"categories"`
}

type categoryTuple grades.Category

func (c categoryTuple) MarshalJSON() ([]byte, error) {
	assignments := make([][4]any, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		assignments = append(assignments, [4]any{a.ID, a.Name, a.Score, a.MaxScore})
	}
	return json.Marshal([5]any{c.ID, c.Name, c.Weight, c.NextAssignmentID, assignments})
}

func newLoadResponse(h grades.Hierarchy) LoadResponse {
	categories := make([]categoryTuple, 0, len(h.Categories))
	for _, c := range h.Categories {
		categories = append(categories, categoryTuple(c))
	}
	return LoadResponse{
		Status:      200,
		Username:    h.Username,
		MaxCategory: h.NextCategoryID,
		Categories:  categories,
	}
}
