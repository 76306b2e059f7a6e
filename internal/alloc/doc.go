// Package alloc provides space allocation management for HDF5 file writing.
//
// Object headers, chunk data and chunk indices must be placed at file
// offsets that never overlap. An [Allocator] hands out those offsets.
//
// Allocation is first-fit over freed blocks, falling back to the end of the
// file. The writer frees a group's previous object header every time it
// rewrites the header with a new link or attribute, so the freed space is
// reused by later headers and datasets.
//
//	a := alloc.New(48)         // start after a 48-byte superblock
//	addr := a.Alloc(1024)      // append at EOF
//	a.Free(addr, 1024)         // give it back
//	again := a.Alloc(512)      // reuses the freed block
//
// [Allocator.Validate] checks that live allocations neither overlap nor
// extend past EOF; tests call it after building fixtures.
package alloc
