// Package session persists per-identity login state between runs.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Identity is one account on the site. The zero value is anonymous.
type Identity struct {
	Name   string
	Secret string
}

// Complete reports whether both the name and the secret are set.
func (id Identity) Complete() bool {
	return id.Name != "" && id.Secret != ""
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FilePrefix returns the path, without extension, under which the
// identity's state files live in dir. The prefix is the readable ASCII
// form of the name followed by the MD5 of the name, so distinct names
// never collide and a name always maps to the same files. It returns ""
// when dir or the name is empty.
func (id Identity) FilePrefix(dir string) string {
	if dir == "" || id.Name == "" {
		return ""
	}
	sum := md5.Sum([]byte(id.Name))
	return filepath.Join(dir, asciiName(id.Name)+"_"+hex.EncodeToString(sum[:]))
}

func asciiName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return unsafeChars.ReplaceAllString(stripped, "")
}
