package store

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/renameio"
	pkgerrors "github.com/pkg/errors"
)

// FileSystem implements the simple file system based store. Each key is
// one file, kept two directories down so no directory grows too large:
// the key "abcdef" is stored as "ab/cd/abcdef".
// The keys are used as file names. This means keys should not contain a
// forward slash character '/'.
//
// Files are first written into a scratch directory and then linked or
// renamed into place, so a reader never sees a partially written file.
type FileSystem struct {
	root string
}

const (
	// the subdir to store files while they are being written to.
	scratchdir = "scratch"
)

var (
	// make sure it implements the Store and Versioned interfaces
	_ Store     = &FileSystem{}
	_ Versioned = &FileSystem{}

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace  means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar  means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control  Characters")

	// ErrKeyEmpty means the key provided is the empty string
	ErrKeyEmpty = errors.New("Key is empty")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root}
}

// ListPrefix returns a list of all the keys beginning with the given prefix.
func (s *FileSystem) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var glob string
	p := globEscape(prefix)
	switch len(prefix) {
	case 0:
		glob = "*/*"
	case 1:
		glob = p + "*/*"
	case 2:
		glob = p + "/*"
	case 3:
		glob = globEscape(prefix[0:2]) + "/" + globEscape(prefix[2:3]) + "*"
	default:
		glob = globEscape(prefix[0:2]) + "/" + globEscape(prefix[2:4])
	}
	glob = filepath.Join(s.root, glob, p+"*")
	result, err := filepath.Glob(glob)
	if err == nil {
		for i := range result {
			result[i] = path.Base(result[i])
		}
	}
	return result, err
}

// globEscape quotes the characters filepath.Match treats specially.
func globEscape(s string) string {
	if !strings.ContainsAny(s, `*?[\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the contents of the file for key.
func (s *FileSystem) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := isKeyValid(key); err != nil {
		return nil, false, err
	}
	data, err := ioutil.ReadFile(s.keypath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Exists reports whether there is a file for key.
func (s *FileSystem) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := isKeyValid(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.keypath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Put writes data into a scratch file and then moves it into place. When
// overwrite is false the move is a hard link, which fails if the target
// already exists, so two writers racing on one key cannot both succeed.
func (s *FileSystem) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Perform Key Name Validation
	if err := isKeyValid(key); err != nil {
		return err
	}
	// first set up the eventual home dir of this file
	target, err := s.setupSubDir(shardDir(key), key)
	if err != nil {
		return err
	}
	if overwrite {
		return s.replace(target, data)
	}
	if _, err = os.Stat(target); !os.IsNotExist(err) {
		return ErrKeyExists
	}
	// now set up the scratch location we will temporarily save the file to
	if _, err = s.setupSubDir(scratchdir, ""); err != nil {
		return err
	}
	f, err := ioutil.TempFile(filepath.Join(s.root, scratchdir), key+".*")
	if err != nil {
		return err
	}
	temp := f.Name()
	defer os.Remove(temp)
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	err = os.Link(temp, target)
	if os.IsExist(err) {
		return ErrKeyExists
	}
	return err
}

// replace atomically puts data at target, replacing anything there.
func (s *FileSystem) replace(target string, data []byte) error {
	dir, err := s.setupSubDir(scratchdir, "")
	if err != nil {
		return err
	}
	pf, err := renameio.TempFile(dir, target)
	if err != nil {
		return err
	}
	defer pf.Cleanup()
	if _, err = pf.Write(data); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

// setupSubDir makes sure the given subdirectory exists under the root, and
// then returns the absolute path to the keyed file, and an optional error.
func (s *FileSystem) setupSubDir(subdir, key string) (string, error) {
	dir := filepath.Join(s.root, subdir)
	err := os.MkdirAll(dir, 0775)
	return filepath.Join(dir, key), err
}

// Delete the given key from the store. It is not an error if the key doesn't
// exist.
func (s *FileSystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := isKeyValid(key); err != nil {
		return err
	}
	err := os.Remove(s.keypath(key))
	// don't report a missing file as an error
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

func (s *FileSystem) keypath(key string) string {
	return filepath.Join(s.root, shardDir(key), key)
}

// shardDir returns the subdirectory the file for key is stored in,
// e.g. "da39a3ee" returns "da/39/".
func shardDir(key string) string {
	var result string
	switch len(key) {
	case 0:
		result = "./"
	case 1:
		result = key + "/"
	case 2:
		result = key + "/"
	case 3:
		result = key[0:2] + "/" + key[2:3] + "/"
	default:
		result = key[0:2] + "/" + key[2:4] + "/"
	}
	return result
}

// Some Simple Item Key Validations
func isKeyValid(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	// Valid Unicode
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}

	// No Slashes
	if strings.Contains(key, "/") {
		return ErrKeyContainsSlash
	}

	for _, rune := range key {
		// No White Space
		if unicode.IsSpace(rune) {
			return ErrKeyContainsWhiteSpace
		}

		// No Control Characters
		if unicode.IsControl(rune) {
			return ErrKeyContainsControlChar
		}
	}

	// return an empty error on success
	return nil
}

// wrapPath adds the key to an error from the os package.
func wrapPath(err error, op, key string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, "filesystem %s %s", op, key)
}
