package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("Q001")
	if err.Code != "Q001" {
		t.Errorf("Code = %q, want Q001", err.Code)
	}
	if err.Category != CategoryParse {
		t.Errorf("Category = %q, want %q", err.Category, CategoryParse)
	}
	if err.Message == "" {
		t.Error("Message should come from the registry")
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("Q999")
	if err.Message != "Unknown error" {
		t.Errorf("Message = %q, want Unknown error", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	t.Run("WithCode", func(t *testing.T) {
		err := New("Q003").WithMessage("Validation failed for page")
		if got := err.Error(); got != "Q003: Validation failed for page" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("WithDetail", func(t *testing.T) {
		err := New("Q001").WithDetail(`"abc" is not a number`)
		if !strings.HasSuffix(err.Error(), `: "abc" is not a number`) {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("NoCode", func(t *testing.T) {
		err := Newf(CategoryCLI, "bad flag %s", "--x")
		if err.Error() != "bad flag --x" {
			t.Errorf("Error() = %q", err.Error())
		}
	})
}

func TestWrapAndUnwrap(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	err := New("Q002").Wrap(sentinel)

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should see the wrapped sentinel")
	}

	var se *SyncError
	if !stderrors.As(err, &se) {
		t.Fatal("errors.As should find SyncError")
	}
	if se.Code != "Q002" {
		t.Errorf("Code = %q", se.Code)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "Q020") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("Q021")
	if FromError(orig, "Q020") != orig {
		t.Error("FromError should return an existing SyncError unchanged")
	}

	plain := stderrors.New("disk on fire")
	wrapped := FromError(plain, "Q020")
	if wrapped.Code != "Q020" || wrapped.Wrapped != plain {
		t.Errorf("FromError = %+v", wrapped)
	}
}

func TestCodeOf(t *testing.T) {
	inner := New("Q010").WithKey("page")
	outer := Newf(CategoryConfig, "outer").Wrap(inner)

	if got := CodeOf(outer); got != "Q010" {
		t.Errorf("CodeOf = %q, want Q010", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("Q022").
		WithKey("page").
		WithDetail("min must not exceed max").
		WithSuggestion("Swap the bounds")

	out := err.Format()
	for _, want := range []string{"ERROR Q022:", "key: page", "min must not exceed max", "Hint: Swap the bounds"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("Q001").WithKey("page").WithDetail("bad")
	want := "Q001: Query value does not match declared type [page]: bad"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}
