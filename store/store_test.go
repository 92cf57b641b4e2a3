package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCanceledByOther(t *testing.T) {
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()
	wrapped := fmt.Errorf("get abc: %w", context.Canceled)

	var table = []struct {
		ctx    context.Context
		err    error
		result bool
	}{
		{live, nil, false},
		{live, errors.New("disk full"), false},
		{live, context.Canceled, true},
		{live, wrapped, true},
		{live, context.DeadlineExceeded, true},
		{done, context.Canceled, false},
	}
	for i, tab := range table {
		if got := CanceledByOther(tab.ctx, tab.err); got != tab.result {
			t.Errorf("case %d: CanceledByOther(%v) = %v, expected %v", i, tab.err, got, tab.result)
		}
	}
}
