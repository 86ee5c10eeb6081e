// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import "github.com/bassosimone/logship/internal/errclass"

// ErrClassifier classifies errors into categorical strings for structured
// logging.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ENOENT") that let a route's log lines be correlated with the error kinds
// plugins report in their run loops.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using [errclass.New].
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)
