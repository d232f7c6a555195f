package grades

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const MessageNothingStored = "No data to be stored. No action was taken."

// TxBeginner starts the transaction each store operation runs in.
// *sqlx.DB and *db.DB satisfy it.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Store persists grade hierarchies. It keeps no state besides the handle it
// was built with; every call runs in its own transaction.
type Store struct {
	db  TxBeginner
	log logrus.FieldLogger
}

func NewStore(db TxBeginner, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}
}

type categoryRow struct {
	ID     string  `db:"id"`
	Name   string  `db:"name"`
	Weight float64 `db:"weight"`
}

type assignmentRow struct {
	CategoryID string  `db:"cid"`
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Score      float64 `db:"score"`
	MaxScore   float64 `db:"max_score"`
}

// Load returns the hierarchy stored for username. A missing user is not an
// error: the result has Found set to false.
func (s *Store) Load(ctx context.Context, username string) (LoadResult, error) {
	var result LoadResult

	err := s.withTx(ctx, "load", func(tx *sqlx.Tx) error {
		exists, err := userExists(ctx, tx, username)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		var categories []categoryRow
		err = tx.SelectContext(ctx, &categories,
			`SELECT id, name, weight FROM categories WHERE uid = ? ORDER BY rowid`, username)
		if err != nil {
			return errors.Wrap(err, "select categories")
		}

		var assignments []assignmentRow
		err = tx.SelectContext(ctx, &assignments,
			`SELECT cid, id, name, score, max_score FROM assignments WHERE uid = ? ORDER BY rowid`, username)
		if err != nil {
			return errors.Wrap(err, "select assignments")
		}

		h, err := buildHierarchy(username, categories, assignments)
		if err != nil {
			return err
		}
		result = LoadResult{Found: true, Hierarchy: h}
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"username": username,
		"found":    result.Found,
	}).Debug("loaded hierarchy")

	return result, nil
}

// Save replaces everything stored for username with categories. An empty
// categories list is a no-op that leaves existing data untouched.
func (s *Store) Save(ctx context.Context, username string, categories []CategoryInput) (SaveResult, error) {
	if len(categories) == 0 {
		return SaveResult{Message: MessageNothingStored}, nil
	}
	if err := validateSave(username, categories); err != nil {
		return SaveResult{}, err
	}

	var replaced bool
	err := s.withTx(ctx, "save", func(tx *sqlx.Tx) error {
		// Must be the first statement: the write lock is taken before a
		// read snapshot exists, so concurrent saves wait on busy_timeout.
		// Categories and assignments go with the user row.
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, username)
		if err != nil {
			return errors.Wrap(err, "delete user")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		replaced = n > 0

		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id) VALUES (?)`, username); err != nil {
			return errors.Wrap(err, "insert user")
		}

		for _, c := range categories {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO categories (uid, id, name, weight) VALUES (?, ?, ?, ?)`,
				username, c.ID, c.Name, c.Weight,
			)
			if err != nil {
				return errors.Wrapf(err, "insert category %q", c.ID)
			}

			for _, a := range c.Assignments {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO assignments (uid, cid, id, name, score, max_score) VALUES (?, ?, ?, ?, ?, ?)`,
					username, c.ID, a.ID, a.Name, a.Score, a.Max,
				)
				if err != nil {
					return errors.Wrapf(err, "insert assignment %q of category %q", a.ID, c.ID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"username":   username,
		"categories": len(categories),
		"replaced":   replaced,
	}).Debug("saved hierarchy")

	return SaveResult{
		Stored:   true,
		Replaced: replaced,
		Message:  fmt.Sprintf("Data was successfully stored for %s.", username),
	}, nil
}

// Delete removes username and, through the cascade, all of its categories
// and assignments.
func (s *Store) Delete(ctx context.Context, username string) error {
	err := s.withTx(ctx, "delete", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, username)
		if err != nil {
			return errors.Wrap(err, "delete user")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("username", username).Debug("deleted hierarchy")
	return nil
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic. Errors other than ErrNotFound come back as *StorageError.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: errors.Wrap(err, "begin transaction")}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).WithField("op", op).Warn("rollback failed")
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return &StorageError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: errors.Wrap(err, "commit")}
	}
	return nil
}

func userExists(ctx context.Context, tx *sqlx.Tx, username string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, username)
	if err != nil {
		return false, errors.Wrap(err, "lookup user")
	}
	return exists, nil
}

func validateSave(username string, categories []CategoryInput) error {
	if username == "" {
		return &ValidationError{Field: "username", Err: errors.New("must not be empty")}
	}
	for _, c := range categories {
		if _, err := ParseID(c.ID); err != nil {
			return &ValidationError{Field: "categories.id", Err: err}
		}
		for _, a := range c.Assignments {
			if _, err := ParseID(a.ID); err != nil {
				return &ValidationError{Field: "categories.assignments.id", Err: err}
			}
		}
	}
	return nil
}

func buildHierarchy(username string, categories []categoryRow, assignments []assignmentRow) (Hierarchy, error) {
	h := Hierarchy{
		Username:   username,
		Categories: make([]Category, 0, len(categories)),
	}

	index := make(map[string]int, len(categories))
	categoryIDs := make([]string, 0, len(categories))
	for _, row := range categories {
		index[row.ID] = len(h.Categories)
		categoryIDs = append(categoryIDs, row.ID)
		h.Categories = append(h.Categories, Category{
			ID:          row.ID,
			Name:        row.Name,
			Weight:      row.Weight,
			Assignments: []Assignment{},
		})
	}

	for _, row := range assignments {
		i, ok := index[row.CategoryID]
		if !ok {
			continue
		}
		h.Categories[i].Assignments = append(h.Categories[i].Assignments, Assignment{
			ID:       row.ID,
			Name:     row.Name,
			Score:    row.Score,
			MaxScore: row.MaxScore,
		})
	}

	next, err := NextID(categoryIDs)
	if err != nil {
		return Hierarchy{}, errors.Wrap(err, "next category id")
	}
	h.NextCategoryID = next

	for i := range h.Categories {
		c := &h.Categories[i]
		ids := make([]string, 0, len(c.Assignments))
		for _, a := range c.Assignments {
			ids = append(ids, a.ID)
		}
		next, err := NextID(ids)
		if err != nil {
			return Hierarchy{}, errors.Wrapf(err, "next assignment id of category %q", c.ID)
		}
		c.NextAssignmentID = next
	}

	return h, nil
}
