package model

import "fmt"

// FetchError reports that an exchange could not be read at all during a cycle.
type FetchError struct {
	Exchange Exchange
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s fetch failed: %v", e.Exchange, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Exchange, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RecordParseError reports one malformed symbol inside an otherwise valid response.
type RecordParseError struct {
	Exchange Exchange
	Symbol   string
	Err      error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("%s %s: malformed record: %v", e.Exchange, e.Symbol, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }
