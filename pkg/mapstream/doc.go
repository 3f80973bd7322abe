// Package mapstream provides a byte stream over a memory-mapped file that may
// be larger than a single mapping can address.
//
// The file is mapped lazily in fixed power-of-two chunks. A cursor tracks the
// absolute position across chunk boundaries; chunks the cursor leaves are
// evicted according to the configured [CacheMode].
//
// # Basic Usage
//
//	s, err := mapstream.Open("/data/big.bin", mapstream.FileOptions{})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	// Stream is an io.Reader, io.ByteReader, io.Seeker and io.WriterTo.
//	_, err = io.Copy(dst, s)
//
// Writable streams hand out an [OutputView] sharing the same chunks, cursor
// and lifetime:
//
//	s, _ := mapstream.Open(path, mapstream.FileOptions{
//	    Options:   mapstream.Options{MapMode: mapstream.MapReadWrite},
//	    Resizable: true,
//	})
//	out, _ := s.OutputView(nil)
//	out.Write(payload) // grows the file as needed
//	out.Close()
//	s.Close()          // last Close unmaps, syncs and closes the file
//
// # Concurrency
//
// One mutex guards a logical stream and every view derived from it. Each
// public method holds it for its whole duration, including the mmap/munmap
// calls it triggers. There is no cancellation.
//
// # Error Handling
//
// All errors wrap one of the package sentinels ([ErrInvalidArgument],
// [ErrClosed], [ErrMapping], ...); match them with [errors.Is]. A failure to
// release a mapping is never returned. In [CacheHardEvict] mode it downgrades
// the stream to [CacheSoftEvict] instead.
package mapstream
