package db

import (
	"context"
	"fmt"
)

// DemoUsername owns the demo hierarchy inserted into a new database.
const DemoUsername = "dannyhp1"

type seedAssignment struct {
	id       string
	name     string
	score    float64
	maxScore float64
}

type seedCategory struct {
	id          string
	name        string
	weight      float64
	assignments []seedAssignment
}

var demoCategories = []seedCategory{
	{
		id:     "0",
		name:   "exams",
		weight: 35,
		assignments: []seedAssignment{
			{id: "0", name: "midterm1", score: 90, maxScore: 100},
			{id: "1", name: "midterm2", score: 95, maxScore: 100},
		},
	},
}

// seedDemoData inserts the demo user and its categories in one transaction.
func (db *DB) seedDemoData(ctx context.Context) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, DemoUsername); err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	for _, c := range demoCategories {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (uid, id, name, weight) VALUES (?, ?, ?, ?)`,
			DemoUsername, c.id, c.name, c.weight,
		)
		if err != nil {
			return fmt.Errorf("failed to seed category: %w", err)
		}

		for _, a := range c.assignments {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO assignments (uid, cid, id, name, score, max_score) VALUES (?, ?, ?, ?, ?, ?)`,
				DemoUsername, c.id, a.id, a.name, a.score, a.maxScore,
			)
			if err != nil {
				return fmt.Errorf("failed to seed assignment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}
