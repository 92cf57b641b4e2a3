package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Versioned values are stored as a generation number on the first line
// followed by the value. The generation is the version token, and it goes
// up by one on every Save.
//
// Saves for a key are serialized with an flock on a lock file in the scratch
// directory. Lock files are never removed.

const (
	// how many times to try for a busy lock before giving up
	lockRetries = 50
	lockBackoff = 20 * time.Millisecond
)

// ErrLockBusy means another writer held a key's lock for too long.
var ErrLockBusy = errors.New("Key is locked by another writer")

// Load returns the value saved for key and its generation.
func (s *FileSystem) Load(ctx context.Context, key string) ([]byte, Token, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return nil, NoToken, ok, err
	}
	gen, data, err := splitGeneration(raw)
	if err != nil {
		return nil, NoToken, false, wrapPath(err, "load", key)
	}
	return data, Token(strconv.FormatUint(gen, 10)), true, nil
}

// Save replaces the value for key if its generation is still prev.
func (s *FileSystem) Save(ctx context.Context, key string, data []byte, prev Token) (Token, error) {
	if err := isKeyValid(key); err != nil {
		return NoToken, err
	}
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return NoToken, err
	}
	defer unlock()

	_, current, _, err := s.Load(ctx, key)
	if err != nil {
		return NoToken, err
	}
	if current != prev {
		return NoToken, ErrPrecondition
	}
	var gen uint64 = 1
	if current != NoToken {
		gen, err = strconv.ParseUint(string(current), 10, 64)
		if err != nil {
			return NoToken, wrapPath(err, "save", key)
		}
		gen++
	}
	if err = ctx.Err(); err != nil {
		return NoToken, err
	}
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatUint(gen, 10))
	buf.WriteByte('\n')
	buf.Write(data)
	target, err := s.setupSubDir(shardDir(key), key)
	if err != nil {
		return NoToken, err
	}
	err = s.replace(target, buf.Bytes())
	if err != nil {
		return NoToken, wrapPath(err, "save", key)
	}
	return Token(strconv.FormatUint(gen, 10)), nil
}

func splitGeneration(raw []byte) (uint64, []byte, error) {
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return 0, nil, errors.New("missing generation line")
	}
	gen, err := strconv.ParseUint(string(raw[:i]), 10, 64)
	if err != nil {
		return 0, nil, err
	}
	return gen, raw[i+1:], nil
}

// lock takes an exclusive flock for key. Contention is retried a bounded
// number of times. The returned function releases the lock.
func (s *FileSystem) lock(ctx context.Context, key string) (func(), error) {
	dir, err := s.setupSubDir(scratchdir, "")
	if err != nil {
		return nil, err
	}
	name := filepath.Join(dir, key+".lock")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if err != unix.EWOULDBLOCK && err != unix.EINTR {
			f.Close()
			return nil, wrapPath(err, "lock", key)
		}
		if attempt >= lockRetries {
			f.Close()
			log.WithField("key", key).Warnln("filesystem: lock still busy, giving up")
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
