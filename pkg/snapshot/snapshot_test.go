package snapshot

import (
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/vango-dev/querysync/pkg/codec"
)

type report struct {
	err error
	key string
	raw string
}

func recorder(reports *[]report) ErrorHandler {
	return func(err error, key, raw string) {
		*reports = append(*reports, report{err, key, raw})
	}
}

func TestNewSchema(t *testing.T) {
	t.Run("Ordered", func(t *testing.T) {
		s := MustSchema(Number("page"), String("q"), Strings("tags"))
		if got := s.Keys(); !reflect.DeepEqual(got, []string{"page", "q", "tags"}) {
			t.Errorf("Keys() = %v", got)
		}
		if k, ok := s.Kind("tags"); !ok || k != codec.KindStringList {
			t.Errorf("Kind(tags) = %v, %v", k, ok)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := NewSchema(String("q"), Number("q"))
		if !stderrors.Is(err, ErrDuplicateKey) {
			t.Errorf("error = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("InvalidKind", func(t *testing.T) {
		if _, err := NewSchema(Field{Key: "x"}); err == nil {
			t.Error("zero Kind should be rejected")
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		if _, err := NewSchema(String("")); err == nil {
			t.Error("empty key should be rejected")
		}
	})

	t.Run("CheckKey", func(t *testing.T) {
		s := MustSchema(String("q"))
		if err := s.CheckKey("q"); err != nil {
			t.Errorf("CheckKey(q) = %v", err)
		}
		if err := s.CheckKey("nope"); !stderrors.Is(err, ErrUnknownKey) {
			t.Errorf("CheckKey(nope) = %v", err)
		}
	})
}

func TestNewReaderRejectsUndeclaredKeys(t *testing.T) {
	s := MustSchema(Number("page"))

	cases := map[string]Options{
		"Defaults":   {Defaults: Values{"size": 10}},
		"Validators": {Validators: map[string]Validator{"size": func(any) bool { return true }}},
		"Codecs":     {Codecs: map[string]*codec.Custom{"size": {}}},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewReader(s, opts); !stderrors.Is(err, ErrUnknownKey) {
				t.Errorf("error = %v, want ErrUnknownKey", err)
			}
		})
	}
}

func TestNewReaderCoercesDefaults(t *testing.T) {
	s := MustSchema(Number("page"), Strings("tags"))
	r, err := NewReader(s, Options{Defaults: Values{"page": 1, "tags": []any{"x"}}})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Default("page"); v != 1.0 {
		t.Errorf("Default(page) = %#v, want 1.0", v)
	}
	if v, _ := r.Default("tags"); !reflect.DeepEqual(v, []string{"x"}) {
		t.Errorf("Default(tags) = %#v", v)
	}

	if _, err := NewReader(s, Options{Defaults: Values{"page": true}}); err == nil {
		t.Error("non-numeric default should be rejected")
	}
}

func TestRead(t *testing.T) {
	s := MustSchema(
		String("q"),
		Number("page"),
		Bool("open"),
		Date("since"),
		Strings("tags"),
		Object("filter"),
	)
	r, err := NewReader(s, Options{})
	if err != nil {
		t.Fatal(err)
	}

	got := r.Read("?q=go+lang&page=3&open=1&since=2024-01-02T00:00:00Z&tags=a&tags=b&filter=%257B%2522c%2522%253A1%257D")

	if v, _ := got.String("q"); v != "go lang" {
		t.Errorf("q = %q", v)
	}
	if v, _ := got.Number("page"); v != 3 {
		t.Errorf("page = %v", v)
	}
	if v, _ := got.Bool("open"); !v {
		t.Errorf("open = %v", v)
	}
	if v, _ := got.Time("since"); !v.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", v)
	}
	if v, _ := got.Strings("tags"); !reflect.DeepEqual(v, []string{"a", "b"}) {
		t.Errorf("tags = %v", v)
	}
	if v, _ := got.Object("filter"); !reflect.DeepEqual(v, map[string]any{"c": 1.0}) {
		t.Errorf("filter = %#v", v)
	}
}

func TestReadAbsentKeys(t *testing.T) {
	s := MustSchema(String("q"), Strings("tags"))
	r, _ := NewReader(s, Options{})

	got := r.Read("")
	if _, ok := got.Get("q"); ok {
		t.Error("q should be absent")
	}
	if v, ok := got.Strings("tags"); !ok || len(v) != 0 || v == nil {
		t.Errorf("tags = %#v, want empty non-nil list", v)
	}
}

func TestReadDefaults(t *testing.T) {
	s := MustSchema(Number("page"), Strings("tags"))
	var reports []report
	r, _ := NewReader(s, Options{
		Defaults: Values{"page": 1, "tags": []string{"all"}},
		OnError:  recorder(&reports),
	})

	t.Run("Missing", func(t *testing.T) {
		got := r.Read("")
		if v, _ := got.Number("page"); v != 1 {
			t.Errorf("page = %v, want default 1", v)
		}
		if v, _ := got.Strings("tags"); !reflect.DeepEqual(v, []string{"all"}) {
			t.Errorf("tags = %v", v)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		reports = nil
		got := r.Read("page=abc")
		if v, _ := got.Number("page"); v != 1 {
			t.Errorf("page = %v, want default 1", v)
		}
		if len(reports) != 1 {
			t.Fatalf("reports = %d, want 1", len(reports))
		}
		if reports[0].key != "page" || reports[0].raw != "abc" || !stderrors.Is(reports[0].err, codec.ErrParse) {
			t.Errorf("report = %+v", reports[0])
		}
	})
}

func TestReadValidation(t *testing.T) {
	s := MustSchema(Number("page"))
	var reports []report
	positive := func(v any) bool { return v.(float64) > 0 }

	t.Run("ReplacedByDefault", func(t *testing.T) {
		reports = nil
		r, _ := NewReader(s, Options{
			Defaults:   Values{"page": 1},
			Validators: map[string]Validator{"page": positive},
			OnError:    recorder(&reports),
		})
		got := r.Read("?page=-1")
		if v, _ := got.Number("page"); v != 1 {
			t.Errorf("page = %v, want 1", v)
		}
		if len(reports) != 1 {
			t.Fatalf("reports = %d, want 1", len(reports))
		}
		rep := reports[0]
		if rep.key != "page" || rep.raw != "-1" || !stderrors.Is(rep.err, ErrValidation) {
			t.Errorf("report = %+v", rep)
		}
		if want := "Q003: Validation failed for page"; rep.err.Error() != want {
			t.Errorf("message = %q, want %q", rep.err.Error(), want)
		}
	})

	t.Run("NoDefaultRemoves", func(t *testing.T) {
		reports = nil
		r, _ := NewReader(s, Options{
			Validators: map[string]Validator{"page": positive},
			OnError:    recorder(&reports),
		})
		got := r.Read("?page=-1")
		if _, ok := got.Get("page"); ok {
			t.Error("page should be absent")
		}
	})

	t.Run("InvalidDefaultNotRevalidated", func(t *testing.T) {
		reports = nil
		calls := 0
		r, _ := NewReader(s, Options{
			Defaults: Values{"page": -5},
			Validators: map[string]Validator{"page": func(v any) bool {
				calls++
				return v.(float64) > 0
			}},
			OnError: recorder(&reports),
		})
		got := r.Read("?page=-1")
		if v, _ := got.Number("page"); v != -5 {
			t.Errorf("page = %v, want the unvalidated default -5", v)
		}
		if calls != 1 || len(reports) != 1 {
			t.Errorf("calls = %d, reports = %d; want 1, 1", calls, len(reports))
		}
	})

	t.Run("DefaultValidatedWhenDecodeAbsent", func(t *testing.T) {
		reports = nil
		calls := 0
		r, _ := NewReader(s, Options{
			Defaults: Values{"page": 2},
			Validators: map[string]Validator{"page": func(v any) bool {
				calls++
				return true
			}},
		})
		r.Read("")
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("PanickingValidatorFails", func(t *testing.T) {
		reports = nil
		r, _ := NewReader(s, Options{
			Validators: map[string]Validator{"page": func(any) bool { panic("boom") }},
			OnError:    recorder(&reports),
		})
		got := r.Read("page=3")
		if _, ok := got.Get("page"); ok || len(reports) != 1 {
			t.Errorf("got %v with %d reports", got, len(reports))
		}
	})
}

func TestReadObjectFailureIsSilent(t *testing.T) {
	s := MustSchema(Object("f"))
	var reports []report
	r, _ := NewReader(s, Options{OnError: recorder(&reports)})

	got := r.Read("f=not-json")
	if _, ok := got.Get("f"); ok {
		t.Error("f should be absent")
	}
	if len(reports) != 0 {
		t.Errorf("reports = %d, want 0", len(reports))
	}
}

func TestReportSurvivesPanickingHandler(t *testing.T) {
	s := MustSchema(Number("page"))
	r, _ := NewReader(s, Options{OnError: func(error, string, string) { panic("handler") }})
	got := r.Read("page=x")
	if _, ok := got.Get("page"); ok {
		t.Error("page should be absent")
	}
}

func TestEqual(t *testing.T) {
	s := MustSchema(String("q"), Date("d"), Strings("t"), Object("o"))
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := Values{"q": "x", "d": when, "t": []string{"a"}, "o": map[string]any{"k": 1.0}}
	b := Values{"q": "x", "d": when.In(time.FixedZone("Y", 7200)), "t": []string{"a"}, "o": map[string]any{"k": 1.0}}
	if !Equal(s, a, b) {
		t.Error("structurally equal snapshots should compare equal")
	}

	tests := []struct {
		name string
		b    Values
	}{
		{"MissingKey", Values{"d": when, "t": []string{"a"}, "o": map[string]any{"k": 1.0}}},
		{"DifferentString", Values{"q": "y", "d": when, "t": []string{"a"}, "o": map[string]any{"k": 1.0}}},
		{"DifferentList", Values{"q": "x", "d": when, "t": []string{"a", "b"}, "o": map[string]any{"k": 1.0}}},
		{"DifferentObject", Values{"q": "x", "d": when, "t": []string{"a"}, "o": map[string]any{"k": 2.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Equal(s, a, tt.b) {
				t.Error("snapshots should differ")
			}
		})
	}

	t.Run("NilValueIsAbsent", func(t *testing.T) {
		if !Equal(s, Values{"q": nil}, Values{}) {
			t.Error("nil value should compare as absent")
		}
	})

	t.Run("UndeclaredKeysIgnored", func(t *testing.T) {
		if !Equal(s, Values{"zzz": 1}, Values{}) {
			t.Error("undeclared keys should not affect equality")
		}
	})
}

func TestNormalize(t *testing.T) {
	s := MustSchema(Number("page"), Strings("tags"), Date("since"), Bool("open"))

	got := Normalize(s, map[string]any{
		"page":  float64(3),
		"tags":  []any{"a", "b"},
		"since": "2024-03-01",
		"open":  "yes",
		"other": 1,
		"gone":  nil,
	})

	if v, _ := got.Number("page"); v != 3 {
		t.Errorf("page = %v", got["page"])
	}
	if v, _ := got.Strings("tags"); len(v) != 2 || v[1] != "b" {
		t.Errorf("tags = %v", got["tags"])
	}
	if v, ok := got.Time("since"); !ok || !v.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", got["since"])
	}
	if got["open"] != "yes" {
		t.Errorf("unconvertible value should pass through, got %v", got["open"])
	}
	if got["other"] != 1 {
		t.Error("undeclared keys should pass through")
	}
	if v, ok := got["gone"]; !ok || v != nil {
		t.Error("nil should be kept as a removal")
	}
}
