// Package config provides configuration parsing for querysync.
//
// The configuration is stored in querysync.json (or querysync.yaml) in the
// working directory. It declares the schema of query keys, their defaults
// and validation rules, and the settings of the sync server.
//
// # Configuration File Structure
//
//	{
//	  "fields": [
//	    {"key": "page", "type": "number", "default": 1, "min": 1},
//	    {"key": "q", "type": "string", "pattern": "^[a-z ]*$"},
//	    {"key": "sort", "type": "string", "default": "new", "oneOf": ["new", "top"]},
//	    {"key": "tags", "type": "string-list", "max": 5}
//	  ],
//	  "sortKeys": true,
//	  "defaultHistory": "push",
//	  "server": {
//	    "addr": ":8080",
//	    "wsPath": "/ws",
//	    "metricsPath": "/metrics",
//	    "allowedOrigins": ["https://example.com"],
//	    "readTimeout": "60s"
//	  }
//	}
//
// min and max bound numbers by value, strings by length and lists by
// element count. pattern and oneOf apply to strings and to every element of
// a list.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	schema, _ := cfg.Schema()
//	opts, _ := cfg.Options()
//	engine, _ := urlsync.New(host, schema, render, opts...)
package config
