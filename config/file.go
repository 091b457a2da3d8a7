package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is a Section loaded from a YAML file.
type File struct {
	*Section

	path string
}

// LoadFile reads the YAML file at path. A missing file loads as an empty
// configuration.
func LoadFile(path string) (*File, error) {
	f := &File{
		Section: NewSection(nil),
		path:    path,
	}

	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the path of the file.
func (f *File) Path() string {
	return f.path
}

// Reload reads the file again and replaces the current values.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.values = make(map[string]any)
		return nil
	}
	if err != nil {
		return errors.New("reading config file failed").
			WithType(ErrTypeConfig).
			WithTag("path", f.path).
			Wrap(err)
	}

	values, err := Decode(data)
	if err != nil {
		return errors.New("decoding config file failed").
			WithType(ErrTypeConfig).
			WithTag("path", f.path).
			Wrap(err)
	}

	f.values = values.values
	return nil
}

// Save writes the current values to the file, creating its directory when
// needed.
func (f *File) Save() error {
	data, err := f.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.New("creating config directory failed").
			WithType(ErrTypeConfig).
			WithTag("path", f.path).
			Wrap(err)
	}

	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return errors.New("writing config file failed").
			WithType(ErrTypeConfig).
			WithTag("path", f.path).
			Wrap(err)
	}
	return nil
}

// Decode decodes a YAML document into a section.
func Decode(data []byte) (*Section, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch v := normalize(raw).(type) {
	case nil:
		return NewSection(nil), nil
	case map[string]any:
		return NewSection(v), nil
	default:
		return nil, errors.New("config document is not a mapping").
			WithType(ErrTypeConfig).
			WithTag("kind", fmt.Sprintf("%T", raw))
	}
}

// Encode encodes the section as a YAML document.
func (s *Section) Encode() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.values); err != nil {
		return nil, errors.New("encoding config failed").
			WithType(ErrTypeConfig).
			Wrap(err)
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize converts mappings with non string keys so that every nested
// section is a map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
