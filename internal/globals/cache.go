package globals

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/gtypes"
	"github.com/CQCL/guppy-go/internal/orderedmap"
)

// cachePayload is the gob wire shape for a Registry snapshot: the three
// ordered maps, nothing else (frozen is re-asserted on load, not encoded).
type cachePayload struct {
	Names   *orderedmap.Map[string, gtypes.Type]
	Methods *orderedmap.Map[dispatchKey, *orderedmap.Map[string, check.FuncSig]]
	Structs *orderedmap.Map[gtypes.DefID, []check.StructField]
}

// GobEncode serializes the registry with gob, s2-compressing the stream,
// directly mirroring inference/inferred_map.go's InferredMap.GobEncode in
// the teacher: the prelude registry is rebuilt identically on every
// compiler invocation otherwise, which is wasted work once it is frozen.
func (r *Registry) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	w := s2.NewWriter(&buf)
	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	payload := cachePayload{Names: r.names, Methods: r.methods, Structs: r.structs}
	if err := gob.NewEncoder(w).Encode(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a registry from an s2-compressed gob stream produced
// by GobEncode, rehydrating each ordered map's lookup index and leaving the
// result frozen (a cache is always a snapshot of a previously-frozen
// registry).
func (r *Registry) GobDecode(data []byte) error {
	var payload cachePayload
	if err := gob.NewDecoder(s2.NewReader(bytes.NewReader(data))).Decode(&payload); err != nil {
		return err
	}
	r.names = payload.Names
	r.methods = payload.Methods
	r.structs = payload.Structs
	r.names.Rehydrate()
	r.structs.Rehydrate()
	r.methods.Rehydrate()
	for _, p := range r.methods.Pairs {
		p.Value.Rehydrate()
	}
	r.frozen = true
	return nil
}

// SaveCache writes a frozen registry's snapshot to path.
func SaveCache(path string, r *Registry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("globals: creating cache file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("globals: encoding cache: %w", err)
	}
	return nil
}

// LoadCache reads a registry snapshot previously written by SaveCache.
func LoadCache(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("globals: opening cache file: %w", err)
	}
	defer f.Close()
	r := &Registry{}
	if err := gob.NewDecoder(f).Decode(r); err != nil {
		return nil, fmt.Errorf("globals: decoding cache: %w", err)
	}
	return r, nil
}
