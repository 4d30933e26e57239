package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy text", errors.New("SQLITE_BUSY: database busy"), true},
		{"locked text", errors.New("database is locked"), true},
		{"wrapped", fmt.Errorf("record outcome: %w", errors.New("database is locked")), true},
		{"other", errors.New("UNIQUE constraint failed"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, isConflict(tc.err))
		})
	}
}
