package server

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docrepo/internal/common"
)

// fields reads typed values out of a request Struct and collects problems
// the same way common.Validator does.
type fields struct {
	s *structpb.Struct
	v *common.Validator
}

func readFields(s *structpb.Struct) *fields {
	if s == nil {
		s = &structpb.Struct{}
	}
	return &fields{s: s, v: common.NewValidator()}
}

func (f *fields) value(key string) (*structpb.Value, bool) {
	v, ok := f.s.GetFields()[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func (f *fields) str(key string) string {
	v, ok := f.value(key)
	if !ok {
		return ""
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		f.v.Field(key, v.AsInterface(), wrongType("a string"))
		return ""
	}
	return strings.TrimSpace(sv.StringValue)
}

func (f *fields) requiredStr(key string) string {
	s := f.str(key)
	f.v.Field(key, s, common.Required)
	return s
}

// integer reads a non-negative whole number, def when absent.
func (f *fields) integer(key string, def int) int {
	v, ok := f.value(key)
	if !ok {
		return def
	}
	nv, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	n := 0.0
	if isNumber {
		n = nv.NumberValue
	}
	if !isNumber || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		f.v.Field(key, v.AsInterface(), wrongType("a non-negative integer"))
		return def
	}
	return int(n)
}

func (f *fields) err() error {
	return f.v.Err()
}

func wrongType(want string) common.ValidationRule {
	return func(fieldName string, value interface{}) *common.ValidationError {
		return &common.ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be %s", want)}
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}
