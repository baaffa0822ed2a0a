package bytecode

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/slotvm/pkg/pool"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// ImageMagic identifies slotvm program images.
const ImageMagic = "SVMI"

// maxImageLiterals bounds decoder allocations for untrusted input.
const maxImageLiterals = pool.MaxEntries

// Image is a program plus the literals it references, in a form that can be
// written to disk or passed between processes.
type Image struct {
	Magic    string         `cbor:"1,keyasint"`
	Version  uint16         `cbor:"2,keyasint"`
	Name     string         `cbor:"3,keyasint,omitempty"`
	Code     []byte         `cbor:"4,keyasint"`
	Literals []ImageLiteral `cbor:"5,keyasint,omitempty"`
}

// ImageLiteral is one constant pool entry. Offsets are implicit in order.
type ImageLiteral struct {
	Kind pool.EntryKind `cbor:"1,keyasint"`
	Str  string         `cbor:"2,keyasint,omitempty"`
	Num  float64        `cbor:"3,keyasint"`
}

var (
	imageEncMode cbor.EncMode
	imageDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: maxImageLiterals,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR dec mode: %v", err))
	}
	imageDecMode = dm
}

// NewImage captures prog and the contents of lits. lits may be nil.
func NewImage(name string, prog Program, lits *pool.Pool) *Image {
	img := &Image{
		Magic:   ImageMagic,
		Version: ImageVersion,
		Name:    name,
		Code:    prog.Bytes(),
	}
	if lits != nil {
		for _, e := range lits.Entries() {
			img.Literals = append(img.Literals, ImageLiteral{Kind: e.Kind, Str: e.Str, Num: e.Num})
		}
	}
	return img
}

// Program splits the image's code into instructions.
func (img *Image) Program() (Program, error) {
	return ProgramFromBytes(img.Code)
}

// LoadLiterals appends the image's literals to p, which must be empty so
// that offsets line up with the ones the code was built against.
func (img *Image) LoadLiterals(p *pool.Pool) error {
	if p.Len() != 0 {
		return fmt.Errorf("bytecode: image literals need an empty pool, got %d entries", p.Len())
	}
	entries := make([]pool.Entry, len(img.Literals))
	for i, l := range img.Literals {
		entries[i] = pool.Entry{Offset: pool.Offset(i), Kind: l.Kind, Str: l.Str, Num: l.Num}
	}
	return p.Load(entries)
}

// MarshalImage serializes an image to canonical CBOR.
func MarshalImage(img *Image) ([]byte, error) {
	return imageEncMode.Marshal(img)
}

// UnmarshalImage deserializes and checks an image.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := imageDecMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, fmt.Errorf("bytecode: invalid image magic: expected %q, got %q", ImageMagic, img.Magic)
	}
	if img.Version == 0 {
		return nil, fmt.Errorf("bytecode: image has no version")
	}
	if img.Version > ImageVersion {
		return nil, fmt.Errorf("bytecode: image version %d is newer than supported version %d", img.Version, ImageVersion)
	}
	if len(img.Code)%InstructionWidth != 0 {
		return nil, fmt.Errorf("bytecode: image code length %d is not a multiple of %d", len(img.Code), InstructionWidth)
	}
	for i, l := range img.Literals {
		if l.Kind != pool.KindString && l.Kind != pool.KindNumber {
			return nil, fmt.Errorf("bytecode: image literal %d has unknown kind %d", i, l.Kind)
		}
	}
	return &img, nil
}

// WriteImageFile writes img to path.
func WriteImageFile(path string, img *Image) error {
	data, err := MarshalImage(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("bytecode: write image: %w", err)
	}
	return nil
}

// ReadImageFile reads and decodes the image at path.
func ReadImageFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read image: %w", err)
	}
	return UnmarshalImage(data)
}
