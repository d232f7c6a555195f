package grades

import (
	"math"
	"strconv"

	"github.com/go-faster/errors"
)

// ParseID parses a category or assignment id as a decimal integer. The
// largest int is refused: no id could follow it.
func ParseID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidID, "%q", id)
	}
	if n == math.MaxInt {
		return 0, errors.Wrapf(ErrInvalidID, "%q is out of range", id)
	}
	return n, nil
}

// NextID returns one more than the largest of ids, or 0 when ids is empty.
func NextID(ids []string) (int, error) {
	next := 0
	for _, id := range ids {
		n, err := ParseID(id)
		if err != nil {
			return 0, err
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}
