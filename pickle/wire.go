package pickle

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("corvus.pickle")

// cborEncMode is the canonical encoding mode used for all pickle
// marshaling. Canonical form keeps encodings deterministic, which the
// content hash depends on.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("pickle: cbor enc mode: %v", err))
	}
}

// Marshal encodes a pickle file to its canonical CBOR form.
func Marshal(f *File) ([]byte, error) {
	data, err := cborEncMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("pickle: marshal file: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a pickle file from CBOR.
func Unmarshal(data []byte) (*File, error) {
	var f File
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("pickle: unmarshal file: %w", err)
	}
	return &f, nil
}

// ContentHash computes the hash a sealed file carries: the SHA-256 of its
// canonical encoding with the hash field zeroed.
func ContentHash(f *File) ([32]byte, error) {
	cp := *f
	cp.Hash = [32]byte{}
	data, err := cborEncMode.Marshal(&cp)
	if err != nil {
		return [32]byte{}, fmt.Errorf("pickle: hash file: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Seal stamps the file with its content hash. Call once the file is fully
// assembled; WriteFile does it for you.
func Seal(f *File) error {
	h, err := ContentHash(f)
	if err != nil {
		return err
	}
	f.Hash = h
	return nil
}

// Verify checks that a decoded file is one this package can read: the
// right tool, a supported format version, and a content hash matching the
// entries.
func Verify(f *File) error {
	if f.Tool != Tool {
		return fmt.Errorf("pickle: not a corvus pickle (tool %q)", f.Tool)
	}
	if f.Version == 0 || f.Version > FormatVersion {
		return fmt.Errorf("pickle: unsupported format version %d (max %d)", f.Version, FormatVersion)
	}
	h, err := ContentHash(f)
	if err != nil {
		return err
	}
	if h != f.Hash {
		return fmt.Errorf("pickle: content hash mismatch: declared %x, computed %x", f.Hash, h)
	}
	return nil
}

// WriteFile seals a pickle and writes it out.
func WriteFile(path string, f *File) error {
	if err := Seal(f); err != nil {
		return err
	}
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pickle: write: %w", err)
	}
	log.Debugf("wrote %s: %d names, %d entries", path, len(f.Names), len(f.Syms))
	return nil
}

// ReadFile reads and verifies a pickle.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pickle: read: %w", err)
	}
	f, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := Verify(f); err != nil {
		return nil, err
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Structural validation
// ---------------------------------------------------------------------------

// checkRefs bounds-checks every reference in the file and enforces the
// entry-shape rules, so the lazy unpickling paths can index without
// re-validating.
func checkRefs(f *File) error {
	nSyms := SymRef(len(f.Syms))
	nNames := NameRef(len(f.Names))
	sym := func(ref SymRef) error {
		if ref > nSyms {
			return fmt.Errorf("pickle: symbol ref %d out of range (have %d)", ref, nSyms)
		}
		return nil
	}
	var typ func(te *TypeEnc) error
	typ = func(te *TypeEnc) error {
		if te == nil {
			return nil
		}
		if err := sym(te.Sym); err != nil {
			return err
		}
		for i := range te.Params {
			if err := typ(&te.Params[i]); err != nil {
				return err
			}
		}
		switch te.Kind {
		case TypeSymRef, TypeThis:
			if te.Sym == 0 {
				return fmt.Errorf("pickle: type ref without a symbol")
			}
		case TypeAnd, TypeOr:
			if te.Left == nil || te.Right == nil {
				return fmt.Errorf("pickle: composite type missing a branch")
			}
		case TypeMethod:
			if te.Res == nil {
				return fmt.Errorf("pickle: method type missing a result")
			}
		}
		for _, side := range []*TypeEnc{te.Left, te.Right, te.Res} {
			if err := typ(side); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range f.Syms {
		e := &f.Syms[i]
		if e.Name > nNames {
			return fmt.Errorf("pickle: entry %d: name ref %d out of range", i+1, e.Name)
		}
		for _, ref := range []SymRef{e.Owner, e.Within, e.Link} {
			if err := sym(ref); err != nil {
				return fmt.Errorf("pickle: entry %d: %w", i+1, err)
			}
		}
		for _, ref := range e.Decls {
			if err := sym(ref); err != nil {
				return fmt.Errorf("pickle: entry %d: %w", i+1, err)
			}
			if ref == 0 {
				return fmt.Errorf("pickle: entry %d: declaration ref 0", i+1)
			}
		}
		for _, a := range e.Annots {
			if err := sym(a.Cls); err != nil {
				return fmt.Errorf("pickle: entry %d: %w", i+1, err)
			}
		}
		if err := typ(e.Info); err != nil {
			return fmt.Errorf("pickle: entry %d: %w", i+1, err)
		}
		for j := range e.Parents {
			if err := typ(&e.Parents[j]); err != nil {
				return fmt.Errorf("pickle: entry %d: %w", i+1, err)
			}
		}
		switch e.Kind {
		case KindTerm:
			if e.Info == nil {
				return fmt.Errorf("pickle: entry %d: term without an info", i+1)
			}
		case KindModule:
			if e.Link == 0 || f.Syms[e.Link-1].Kind != KindModuleClass {
				return fmt.Errorf("pickle: entry %d: module value without a class half", i+1)
			}
		case KindModuleClass:
			if e.Link == 0 || f.Syms[e.Link-1].Kind != KindModule {
				return fmt.Errorf("pickle: entry %d: module class without a value half", i+1)
			}
		case KindPackage:
			if e.Owner != 0 && f.Syms[e.Owner-1].Kind != KindPackage {
				return fmt.Errorf("pickle: entry %d: package owned by a non-package", i+1)
			}
		case KindClass, KindExternal:
		default:
			return fmt.Errorf("pickle: entry %d: unknown kind %d", i+1, e.Kind)
		}
	}
	for _, ref := range f.Roots {
		if err := sym(ref); err != nil {
			return err
		}
		if ref == 0 {
			return fmt.Errorf("pickle: root ref 0")
		}
	}
	return nil
}
