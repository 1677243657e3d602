package config

import (
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

// Schema builds the snapshot schema declared by Fields.
func (c *Config) Schema() (*snapshot.Schema, error) {
	fields := make([]snapshot.Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		kind, err := codec.ParseKind(f.Type)
		if err != nil {
			return nil, errors.FromError(err, "Q012").WithKey(f.Key)
		}
		fields = append(fields, snapshot.Field{Key: f.Key, Kind: kind})
	}
	return snapshot.NewSchema(fields...)
}

// Options converts the configuration into engine options: key ordering,
// default history mode, defaults, and compiled validators.
func (c *Config) Options() ([]urlsync.Option, error) {
	mode, err := history.ParseMode(c.DefaultHistory)
	if err != nil {
		return nil, err
	}
	opts := []urlsync.Option{
		urlsync.WithSortKeys(c.SortKeys),
		urlsync.WithDefaultHistory(mode),
	}

	for _, f := range c.Fields {
		kind, err := codec.ParseKind(f.Type)
		if err != nil {
			return nil, errors.FromError(err, "Q012").WithKey(f.Key)
		}
		if f.Default != nil {
			opts = append(opts, urlsync.WithDefault(f.Key, f.Default))
		}
		validate, err := f.validator(kind)
		if err != nil {
			return nil, err
		}
		if validate != nil {
			opts = append(opts, urlsync.WithValidator(f.Key, validate))
		}
	}
	return opts, nil
}

// validator compiles the field's rules. It returns nil when the field has
// none.
func (f FieldConfig) validator(kind codec.Kind) (snapshot.Validator, error) {
	if f.Min == nil && f.Max == nil && f.Pattern == "" && len(f.OneOf) == 0 {
		return nil, nil
	}

	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return nil, ruleError(f.Key, fmt.Sprintf("min %v is greater than max %v", *f.Min, *f.Max))
	}

	var pattern *regexp.Regexp
	if f.Pattern != "" {
		if kind != codec.KindString && kind != codec.KindStringList {
			return nil, ruleError(f.Key, "pattern applies only to string and string-list fields")
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, ruleError(f.Key, "invalid pattern: "+err.Error())
		}
		pattern = re
	}
	if len(f.OneOf) > 0 && kind != codec.KindString && kind != codec.KindStringList {
		return nil, ruleError(f.Key, "oneOf applies only to string and string-list fields")
	}
	if (f.Min != nil || f.Max != nil) && kind != codec.KindNumber && kind != codec.KindString && kind != codec.KindStringList {
		return nil, ruleError(f.Key, "min and max apply only to number, string and string-list fields")
	}

	inRange := func(n float64) bool {
		if f.Min != nil && n < *f.Min {
			return false
		}
		if f.Max != nil && n > *f.Max {
			return false
		}
		return true
	}
	matches := func(s string) bool {
		if pattern != nil && !pattern.MatchString(s) {
			return false
		}
		if len(f.OneOf) > 0 && !slices.Contains(f.OneOf, s) {
			return false
		}
		return true
	}

	switch kind {
	case codec.KindNumber:
		return func(v any) bool {
			n, ok := v.(float64)
			return ok && inRange(n)
		}, nil

	case codec.KindString:
		return func(v any) bool {
			s, ok := v.(string)
			return ok && inRange(float64(utf8.RuneCountInString(s))) && matches(s)
		}, nil

	case codec.KindStringList:
		return func(v any) bool {
			list, ok := v.([]string)
			if !ok || !inRange(float64(len(list))) {
				return false
			}
			for _, s := range list {
				if !matches(s) {
					return false
				}
			}
			return true
		}, nil
	}

	return nil, nil
}

func ruleError(key, detail string) error {
	return errors.New("Q022").WithKey(key).WithDetail(detail)
}
