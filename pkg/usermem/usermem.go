// Copyright 2018 The gVisor Authors.
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

// Package usermem governs access to user memory.
package usermem

import (
	"context"
	"fmt"

	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
)

// IO provides access to the contents of a virtual memory space.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	//
	// CopyOut faults in pages as needed.
	CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts IOOpts) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	// It returns the number of bytes copied. If the number of bytes copied is
	// < len(dst), it returns a non-nil error explaining why.
	//
	// CopyIn faults in pages as needed.
	CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts IOOpts) (int, error)

	// EnsureResident checks that every page in [addr, addr+length) is mapped
	// with at least the access type at, and makes those pages resident. It
	// does not copy any data. Unlike CopyIn and CopyOut it does not partially
	// succeed: either the whole range is usable or an error is returned and
	// nothing is populated.
	EnsureResident(ctx context.Context, addr hostarch.Addr, length int64, at hostarch.AccessType) error
}

// IOOpts contains options applicable to all IO methods.
type IOOpts struct {
	// If IgnorePermissions is true, application-defined memory protections set
	// by mmap(2) or mprotect(2) will be ignored. (Memory protections required
	// by the target of the mapping are never ignored.)
	IgnorePermissions bool
}

// Marshallable is a fixed-size object that can be copied to and from user
// memory in its wire format.
type Marshallable interface {
	// SizeBytes is the size of the wire format in bytes.
	SizeBytes() int

	// MarshalBytes serializes the object into dst and returns the remainder
	// of dst.
	MarshalBytes(dst []byte) []byte

	// UnmarshalBytes deserializes the object from src and returns the
	// remainder of src.
	UnmarshalBytes(src []byte) []byte
}

// CopyObjectOut copies a fixed-size value to the memory mapped at addr in uio.
// It returns the number of bytes copied.
func CopyObjectOut(ctx context.Context, uio IO, addr hostarch.Addr, src Marshallable, opts IOOpts) (int, error) {
	buf := make([]byte, src.SizeBytes())
	src.MarshalBytes(buf)
	return uio.CopyOut(ctx, addr, buf, opts)
}

// CopyObjectIn copies a fixed-size value from the memory mapped at addr in uio.
// dst is only modified if the whole object was copied.
func CopyObjectIn(ctx context.Context, uio IO, addr hostarch.Addr, dst Marshallable, opts IOOpts) (int, error) {
	buf := make([]byte, dst.SizeBytes())
	n, err := uio.CopyIn(ctx, addr, buf, opts)
	if err != nil {
		return n, err
	}
	dst.UnmarshalBytes(buf)
	return n, nil
}

// Pointer is a user address together with the memory it refers to. A
// Pointer only describes a location; validity is established either lazily,
// by copying through it and handling the resulting fault, or eagerly, by
// Materialize.
type Pointer struct {
	IO   IO
	Addr hostarch.Addr
	Size int
}

// PointerTo returns a Pointer to an object of size bytes at addr.
func PointerTo(uio IO, addr hostarch.Addr, size int) Pointer {
	return Pointer{IO: uio, Addr: addr, Size: size}
}

// IsNull returns true if p is the null pointer.
func (p Pointer) IsNull() bool {
	return p.Addr == 0
}

// Materialize checks that the whole object behind p is accessible with at
// and makes it resident.
func (p Pointer) Materialize(ctx context.Context, at hostarch.AccessType) error {
	if p.IsNull() {
		return linuxerr.EFAULT
	}
	return p.IO.EnsureResident(ctx, p.Addr, int64(p.Size), at)
}

// CopyIn reads the object behind p into dst. Faults are reported as EFAULT.
func (p Pointer) CopyIn(ctx context.Context, dst Marshallable) error {
	if dst.SizeBytes() != p.Size {
		panic(fmt.Sprintf("CopyIn of %d-byte object through %d-byte pointer", dst.SizeBytes(), p.Size))
	}
	if _, err := CopyObjectIn(ctx, p.IO, p.Addr, dst, IOOpts{}); err != nil {
		return translate(err)
	}
	return nil
}

// CopyOut writes src to the object behind p. Faults are reported as EFAULT.
func (p Pointer) CopyOut(ctx context.Context, src Marshallable) error {
	if src.SizeBytes() != p.Size {
		panic(fmt.Sprintf("CopyOut of %d-byte object through %d-byte pointer", src.SizeBytes(), p.Size))
	}
	if _, err := CopyObjectOut(ctx, p.IO, p.Addr, src, IOOpts{}); err != nil {
		return translate(err)
	}
	return nil
}

// String implements fmt.Stringer.String.
func (p Pointer) String() string {
	return fmt.Sprintf("%v[%d]", p.Addr, p.Size)
}

// translate converts any I/O failure to EFAULT, which is what Linux reports
// for all failed user memory accesses.
func translate(err error) error {
	if linuxerr.Equals(linuxerr.EFAULT, err) {
		return linuxerr.EFAULT
	}
	return fmt.Errorf("%w: %v", linuxerr.EFAULT, err)
}
