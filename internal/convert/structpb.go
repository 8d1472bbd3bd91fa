package convert

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tamir303/Afekaton2024/internal/errs"
)

// ToStruct renders a DTO as a protobuf Struct through its JSON form.
// v must marshal to a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%T is not a JSON object: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes s into the DTO pointed to by v. A nil s decodes as {}.
// Shape mismatches are ErrBadRequest.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %v: %w", v, err, errs.ErrBadRequest)
	}
	return nil
}
