// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"gvisor.dev/sigkern/pkg/abi/linux/errno"
	"gvisor.dev/sigkern/pkg/errors"
)

// The following errors are semantically identical to Errno of type unix.Errno.
// Since the types are distinct they are not directly comparable; use Equals
// or ToUnix.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errno.EPERM, "operation not permitted")
	ENOENT                = errors.New(errno.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(errno.ESRCH, "no such process")
	EINTR                 = errors.New(errno.EINTR, "interrupted system call")
	EIO                   = errors.New(errno.EIO, "I/O error")
	E2BIG                 = errors.New(errno.E2BIG, "argument list too long")
	EBADF                 = errors.New(errno.EBADF, "bad file number")
	ECHILD                = errors.New(errno.ECHILD, "no child processes")
	EAGAIN                = errors.New(errno.EAGAIN, "try again")
	ENOMEM                = errors.New(errno.ENOMEM, "out of memory")
	EACCES                = errors.New(errno.EACCES, "permission denied")
	EFAULT                = errors.New(errno.EFAULT, "bad address")
	EBUSY                 = errors.New(errno.EBUSY, "device or resource busy")
	EEXIST                = errors.New(errno.EEXIST, "file exists")
	EINVAL                = errors.New(errno.EINVAL, "invalid argument")
	ERANGE                = errors.New(errno.ERANGE, "math result not representable")
	EDEADLK               = errors.New(errno.EDEADLK, "resource deadlock would occur")
	ENOSYS                = errors.New(errno.ENOSYS, "invalid system call number")

	// Errors equivalent to other errors.
	EWOULDBLOCK = EAGAIN
)

// ERESTARTNOHAND is returned by an interrupted syscall to indicate that it
// should be converted to EINTR if interrupted by a signal delivered to a user
// handler, and restarted otherwise.
var ERESTARTNOHAND = errors.New(errno.ERESTARTNOHAND, "to be restarted if no handler")

// errorSlice holds errors by errno for fast translation between errnos and
// *errors.Error. Unused slots are nil and are skipped by ToError.
var errorSlice = func() []*errors.Error {
	s := make([]*errors.Error, errno.ENOSYS+1)
	for _, e := range []*errors.Error{
		EPERM, ENOENT, ESRCH, EINTR, EIO, E2BIG, EBADF, ECHILD, EAGAIN,
		ENOMEM, EACCES, EFAULT, EBUSY, EEXIST, EINVAL, ERANGE, EDEADLK, ENOSYS,
	} {
		s[e.Errno()] = e
	}
	return s
}()

// ErrorFromUnix returns the *errors.Error for a unix.Errno. It returns nil for
// zero and for errnos that are not known to this package.
func ErrorFromUnix(err unix.Errno) *errors.Error {
	if err == 0 || int(err) >= len(errorSlice) {
		return noError
	}
	return errorSlice[err]
}

// ToUnix converts e to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	if e == noError {
		return 0
	}
	return unix.Errno(e.Errno())
}

// ToError converts an *errors.Error to an error, returning a literal nil for a
// nil *errors.Error so that callers never observe a typed nil.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// Equals compares a linuxerr to a given error. The given error may be an
// *errors.Error, a unix.Errno, or wrap either of them.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == noError
	}
	var le *errors.Error
	if goerrors.As(err, &le) {
		return e == le
	}
	var ue unix.Errno
	if goerrors.As(err, &ue) {
		return e != noError && ToUnix(e) == ue
	}
	return false
}

// ErrnoOf extracts the errno carried by err. ok is false if err carries none.
func ErrnoOf(err error) (errno.Errno, bool) {
	var le *errors.Error
	if goerrors.As(err, &le) {
		return le.Errno(), true
	}
	var ue unix.Errno
	if goerrors.As(err, &ue) {
		return errno.Errno(ue), true
	}
	return 0, false
}
