//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

// Package errclass classifies errors into short categorical strings for
// structured-log correlation across plugin I/O: file opens, socket dials,
// and ack/state-file writes all funnel through the same taxonomy.
package errclass

import (
	"context"
	"errors"
	"io"
	"os"
	"syscall"
)

// Exported classification labels. These mirror common POSIX errno names
// and a handful of stdlib sentinel errors so a log consumer can grep for
// one of these strings regardless of platform.
const (
	EADDRNOTAVAIL   = "EADDRNOTAVAIL"
	EADDRINUSE      = "EADDRINUSE"
	ECONNABORTED    = "ECONNABORTED"
	ECONNREFUSED    = "ECONNREFUSED"
	ECONNRESET      = "ECONNRESET"
	EHOSTUNREACH    = "EHOSTUNREACH"
	EINVAL          = "EINVAL"
	EINTR           = "EINTR"
	ENETDOWN        = "ENETDOWN"
	ENETUNREACH     = "ENETUNREACH"
	ENOBUFS         = "ENOBUFS"
	ENOTCONN        = "ENOTCONN"
	EPROTONOSUPPORT = "EPROTONOSUPPORT"
	ETIMEDOUT       = "ETIMEDOUT"
	ENOENT          = "ENOENT"
	EEXIST          = "EEXIST"
	EACCES          = "EACCES"
	ENOSPC          = "ENOSPC"
	EROFS           = "EROFS"
	EISDIR          = "EISDIR"
	ECANCELED       = "ECANCELED"
	EEOF            = "EOF"
	EGENERIC        = "EGENERIC"
)

// New classifies err into one of the labels above, or the empty string
// if err is nil, or [EGENERIC] if err does not match any known case.
func New(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ECANCELED
	case errors.Is(err, context.DeadlineExceeded):
		return ETIMEDOUT
	case errors.Is(err, io.EOF):
		return EEOF
	case errors.Is(err, os.ErrNotExist):
		return ENOENT
	case errors.Is(err, os.ErrExist):
		return EEXIST
	case errors.Is(err, os.ErrPermission):
		return EACCES
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if label, ok := classifyErrno(errno); ok {
			return label
		}
	}

	var netTimeout interface{ Timeout() bool }
	if errors.As(err, &netTimeout) && netTimeout.Timeout() {
		return ETIMEDOUT
	}

	return EGENERIC
}

func classifyErrno(errno syscall.Errno) (string, bool) {
	switch errno {
	case errEADDRNOTAVAIL:
		return EADDRNOTAVAIL, true
	case errEADDRINUSE:
		return EADDRINUSE, true
	case errECONNABORTED:
		return ECONNABORTED, true
	case errECONNREFUSED:
		return ECONNREFUSED, true
	case errECONNRESET:
		return ECONNRESET, true
	case errEHOSTUNREACH:
		return EHOSTUNREACH, true
	case errEINVAL:
		return EINVAL, true
	case errEINTR:
		return EINTR, true
	case errENETDOWN:
		return ENETDOWN, true
	case errENETUNREACH:
		return ENETUNREACH, true
	case errENOBUFS:
		return ENOBUFS, true
	case errENOTCONN:
		return ENOTCONN, true
	case errEPROTONOSUPPORT:
		return EPROTONOSUPPORT, true
	case errETIMEDOUT:
		return ETIMEDOUT, true
	case errENOENT:
		return ENOENT, true
	case errEEXIST:
		return EEXIST, true
	case errEACCES:
		return EACCES, true
	case errENOSPC:
		return ENOSPC, true
	case errEROFS:
		return EROFS, true
	case errEISDIR:
		return EISDIR, true
	default:
		return "", false
	}
}
