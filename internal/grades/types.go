package grades

// Assignment is a scored item inside a category.
type Assignment struct {
	ID       string
	Name     string
	Score    float64
	MaxScore float64
}

// Category is a named, weighted group of assignments. NextAssignmentID is
// the id a client should use for the next assignment it adds.
type Category struct {
	ID               string
	Name             string
	Weight           float64
	NextAssignmentID int
	Assignments      []Assignment
}

// Hierarchy is everything stored for one user.
type Hierarchy struct {
	Username       string
	Categories     []Category
	NextCategoryID int
}

// LoadResult is either a found hierarchy or a miss. Hierarchy is only
// meaningful when Found is true.
type LoadResult struct {
	Found     bool
	Hierarchy Hierarchy
}

// AssignmentInput is one assignment of a save request.
type AssignmentInput struct {
	ID    string
	Name  string
	Score float64
	Max   float64
}

// CategoryInput is one category of a save request.
type CategoryInput struct {
	ID          string
	Name        string
	Weight      float64
	Assignments []AssignmentInput
}

// SaveResult describes a successful Save. Stored is false when the request
// carried no categories and nothing was written.
type SaveResult struct {
	Stored   bool
	Replaced bool
	Message  string
}
