package clipboard

import (
	"errors"
	"testing"
)

func TestCopyEmpty(t *testing.T) {
	for _, s := range []string{"", "   ", "\n\t"} {
		if err := Copy(s); !errors.Is(err, ErrNothingToCopy) {
			t.Errorf("Copy(%q) = %v, want ErrNothingToCopy", s, err)
		}
	}
}
