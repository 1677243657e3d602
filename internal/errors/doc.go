// Package errors provides structured, coded errors for querysync.
//
// Every failure the sync engine, the config loader, or the WebSocket
// transport can observe maps to a registered code:
//
//   - parse: a raw query value does not conform to its declared type
//   - serialize: a value cannot be encoded for its declared type
//   - validation: a decoded value was rejected by a validator
//   - config: a schema, option bundle, or config file is unusable
//   - protocol: a transport message could not be understood
//   - cli: command line usage problems
//
// # Usage
//
//	err := errors.New("Q001").
//	    WithDetail(`"abc" is not a finite number`).
//	    Wrap(codec.ErrParse)
//
//	if stderrors.Is(err, codec.ErrParse) {
//	    ...
//	}
//
// Errors render for terminals with Format and for logs with FormatCompact.
package errors
