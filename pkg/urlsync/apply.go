package urlsync

import (
	"context"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/navbridge"
	"github.com/vango-dev/querysync/pkg/snapshot"
)

// Report is one failure passed to the error handler during Apply.
type Report struct {
	Key     string `json:"key"`
	Raw     string `json:"raw,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Apply.
type Result struct {
	// URL is the final address, path?query#fragment.
	URL string `json:"url"`

	// Values is the last published snapshot.
	Values snapshot.Values `json:"values"`

	// Entries is the number of history entries created, 1 plus one per push.
	Entries int `json:"entries"`

	// Errors lists every reported failure in order.
	Errors []Report `json:"errors,omitempty"`
}

// Apply mounts a throwaway engine on address, applies each patch in order
// and unmounts. With no patches it reports what a page at address would
// read, after defaults are written into it.
func Apply(ctx context.Context, address string, schema *snapshot.Schema, patches []snapshot.Values, patchOpts []PatchOption, opts ...Option) (*Result, error) {
	host, err := history.NewMemory(address)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	collect := func(err error, key, raw string) {
		r := Report{Key: key, Raw: raw, Code: errors.CodeOf(err), Message: err.Error()}
		if se, ok := err.(*errors.SyncError); ok {
			r.Message = se.Message
			if se.Detail != "" {
				r.Message += ": " + se.Detail
			}
		}
		res.Errors = append(res.Errors, r)
	}

	all := make([]Option, 0, len(opts)+2)
	all = append(all, opts...)
	all = append(all, WithBridge(navbridge.New(host)))

	cfg := defaultConfig()
	for _, opt := range all {
		opt(&cfg)
	}
	user := cfg.onError
	all = append(all, WithErrorHandler(func(err error, key, raw string) {
		collect(err, key, raw)
		if user != nil {
			user(err, key, raw)
		}
	}))

	e, err := New(host, schema, func(v snapshot.Values) { res.Values = v }, all...)
	if err != nil {
		return nil, err
	}
	if _, err := e.Mount(ctx); err != nil {
		return nil, err
	}
	defer e.Unmount()

	for _, changes := range patches {
		if err := e.Patch(ctx, changes, patchOpts...); err != nil {
			return nil, err
		}
	}

	res.URL = host.Location().Relative()
	res.Entries = host.Len()
	return res, nil
}
