package config

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// WorldsKey is the section that holds the world definitions.
const WorldsKey = "worlds"

// World describes the geometry of the area indexed by a session.
type World struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	CellLength int    `json:"cell_length"`
}

// Validate checks that the world can back a grid.
func (w World) Validate() error {
	if w.Name == "" {
		return errors.New("world has no name").WithType(ErrTypeConfig)
	}

	if w.Width <= 0 || w.Height <= 0 {
		return errors.New("world size must be positive").
			WithType(ErrTypeConfig).
			WithTag("world", w.Name).
			WithTag("width", w.Width).
			WithTag("height", w.Height)
	}

	if w.CellLength <= 0 || w.CellLength&(w.CellLength-1) != 0 {
		return errors.New("world cell length is not a power of two").
			WithType(ErrTypeConfig).
			WithTag("world", w.Name).
			WithTag("cell_length", w.CellLength)
	}
	return nil
}

// Worlds is a catalogue of worlds indexed by name.
type Worlds map[string]World

// Get returns the world with the given name.
func (w Worlds) Get(name string) (World, bool) {
	world, ok := w[name]
	return world, ok
}

// Names returns the sorted world names.
func (w Worlds) Names() []string {
	names := make([]string, 0, len(w))
	for n := range w {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add validates and adds a world, replacing any world with the same name.
func (w Worlds) Add(world World) error {
	if err := world.Validate(); err != nil {
		return err
	}
	w[world.Name] = world
	return nil
}

// LoadWorlds reads the worlds defined under the worlds key of s:
//
//	worlds:
//	  arena:
//	    width: 1024
//	    height: 1024
//	    cell_length: 64
//
// Every world is validated.
func LoadWorlds(s *Section) (Worlds, error) {
	worlds := make(Worlds)

	ws := s.Section(WorldsKey)
	if ws == nil {
		return worlds, nil
	}

	for _, name := range ws.Keys() {
		def := ws.Section(name)
		if def == nil {
			return nil, errors.New("world definition is not a section").
				WithType(ErrTypeConfig).
				WithTag("world", name)
		}

		world := World{
			Name:       name,
			Width:      def.Int("width", 0),
			Height:     def.Int("height", 0),
			CellLength: def.Int("cell_length", 0),
		}
		if err := worlds.Add(world); err != nil {
			return nil, err
		}
	}
	return worlds, nil
}

// LoadWorldsFile reads the worlds defined in the YAML file at path.
func LoadWorldsFile(path string) (Worlds, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadWorlds(f.Section)
}
