// Package util contains misc internal utilities.
package util

import (
	"errors"
	"strconv"
	"strings"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// IntSliceContains returns true if v is in is
func IntSliceContains(is []int, v int) bool {
	for _, i := range is {
		if i == v {
			return true
		}
	}
	return false
}

// Clamp limits v to [low, high]
func Clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// MergeErrors combines the non-nil errors of errs into one.  It returns nil
// if there are none, and the error itself if there is only one.
func MergeErrors(errs []error) error {
	var keep []error
	for _, err := range errs {
		if err != nil {
			keep = append(keep, err)
		}
	}
	switch len(keep) {
	case 0:
		return nil
	case 1:
		return keep[0]
	default:
		return errors.Join(keep...)
	}
}
