// Package validate holds the request field checks used by the handlers.
package validate

import (
	"strconv"
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Errs collects per-field failures; it doubles as the error message.
type Errs []ErrField

func (e Errs) Error() string {
	parts := make([]string, 0, len(e))
	for _, ef := range e {
		parts = append(parts, ef.Field+": "+ef.Msg)
	}
	return strings.Join(parts, "; ")
}

func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}
