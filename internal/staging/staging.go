// Package staging stores candidate media bytes between upload and analysis.
// Session state only ever carries the opaque object key.
package staging

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrTooLarge is returned when a candidate exceeds the configured size cap.
var ErrTooLarge = errors.New("file exceeds size limit")

// Staged describes a successfully staged blob.
type Staged struct {
	Size        int64
	SniffedType string
}

// Stager stages, reopens and removes media blobs.
type Stager interface {
	Stage(ctx context.Context, key string, r io.Reader) (*Staged, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// copyCapped streams r into dst enforcing max bytes and capturing the first
// 512 bytes for MIME sniffing. The 32 KiB buffer keeps memory bounded
// regardless of upload size.
func copyCapped(dst io.Writer, r io.Reader, max int64) (int64, string, error) {
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > max {
				return written, "", ErrTooLarge
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, "", err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return written, "", readErr
		}
	}
	if written == 0 {
		return 0, "", errors.New("empty file")
	}
	return written, http.DetectContentType(sniff), nil
}
