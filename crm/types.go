package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Int is an integer field of a CRM document. The CRM sends most numbers as
// strings and uses "", "0" or null for absent references; all of them decode
// to 0, which the relation layer treats as null.
type Int int

// UnmarshalJSON accepts numbers and numeric strings.
func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*i = 0
			return nil
		}
		data = []byte(s)
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("crm: invalid integer %s: %w", data, err)
	}
	*i = Int(n)
	return nil
}

// Value returns the integer and whether it is set.
func (i Int) Value() (int, bool) {
	return int(i), i != 0
}

// Float is a decimal CRM field, sent either as a number or a string.
type Float float64

// UnmarshalJSON accepts numbers and numeric strings.
func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		data = []byte(s)
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("crm: invalid decimal %s: %w", data, err)
	}
	*f = Float(n)
	return nil
}
