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

package mm

import (
	"context"

	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/usermem"
)

// logIOErrors causes failed user memory accesses to be logged at debug level.
const logIOErrors = true

// CheckIORange is similar to hostarch.Addr.ToRange, but applies bounds checks
// against the address space layout.
//
// Preconditions: length >= 0.
func (mm *MemoryManager) CheckIORange(addr hostarch.Addr, length int64) (hostarch.AddrRange, bool) {
	// Note that access_ok() constrains end even if length == 0.
	ar, ok := addr.ToRange(uint64(length))
	return ar, (ok && ar.End <= mm.layout.MaxAddr)
}

// CopyOut implements usermem.IO.CopyOut.
func (mm *MemoryManager) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := mm.CheckIORange(addr, int64(len(src)))
	if !ok {
		return 0, mm.ioError(addr, linuxerr.EFAULT)
	}
	if len(src) == 0 {
		return 0, nil
	}
	return mm.withPages(ar, hostarch.Write, opts.IgnorePermissions, func(page []byte, srcOff int) int {
		return copy(page, src[srcOff:])
	})
}

// CopyIn implements usermem.IO.CopyIn.
func (mm *MemoryManager) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := mm.CheckIORange(addr, int64(len(dst)))
	if !ok {
		return 0, mm.ioError(addr, linuxerr.EFAULT)
	}
	if len(dst) == 0 {
		return 0, nil
	}
	return mm.withPages(ar, hostarch.Read, opts.IgnorePermissions, func(page []byte, dstOff int) int {
		return copy(dst[dstOff:], page)
	})
}

// EnsureResident implements usermem.IO.EnsureResident.
func (mm *MemoryManager) EnsureResident(ctx context.Context, addr hostarch.Addr, length int64, at hostarch.AccessType) error {
	ar, ok := mm.CheckIORange(addr, length)
	if !ok {
		return mm.ioError(addr, linuxerr.EFAULT)
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.stats.EagerChecks++

	// Validate the whole range before populating anything.
	var vmas []*vma
	for cur := ar.Start; cur < ar.End; {
		v := mm.findVMALocked(cur)
		if v == nil || !v.perms.SupersetOf(at) {
			mm.stats.FailedAccesses++
			return mm.ioError(cur, linuxerr.EFAULT)
		}
		vmas = append(vmas, v)
		cur = v.end
	}
	for _, v := range vmas {
		start := max(v.start, ar.Start.RoundDown())
		end := min(v.end, ar.End)
		for pa := start; pa < end; pa += hostarch.PageSize {
			mm.populateLocked(v, pa)
		}
	}
	return nil
}

// withPages calls f for each page-sized chunk of ar in order, faulting pages
// in as needed. f receives the part of the page inside ar and the offset of
// that part from ar.Start, and returns the number of bytes it consumed.
//
// withPages stops at the first address that is unmapped or whose mapping does
// not permit at, returning the number of bytes handled before it and EFAULT.
func (mm *MemoryManager) withPages(ar hostarch.AddrRange, at hostarch.AccessType, ignorePermissions bool, f func(page []byte, off int) int) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	done := 0
	for cur := ar.Start; cur < ar.End; {
		v := mm.findVMALocked(cur)
		if v == nil || (!ignorePermissions && !v.perms.SupersetOf(at)) {
			mm.stats.FailedAccesses++
			return done, mm.ioError(cur, linuxerr.EFAULT)
		}
		pa := cur.RoundDown()
		page := mm.populateLocked(v, pa)
		lo := cur.PageOffset()
		hi := uint64(hostarch.PageSize)
		if rem := uint64(ar.End - pa); rem < hi {
			hi = rem
		}
		n := f(page[lo:hi], done)
		done += n
		cur += hostarch.Addr(n)
	}
	return done, nil
}

// ioError logs err as the result of an access at addr and returns it.
func (mm *MemoryManager) ioError(addr hostarch.Addr, err error) error {
	if logIOErrors {
		log.Debugf("MM I/O error at %v: %v", addr, err)
	}
	return err
}
