package rpc

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cast"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frames are sent in columnar form:
//
//	{"columns": [{"name": "id", "type": "string", "values": ["a", "b"]}, ...]}
//
// type is one of string, int, float and bool. Missing values are null.

// EncodeFrame encodes df as a Struct.
func EncodeFrame(df dataframe.DataFrame) (*structpb.Struct, error) {
	if df.Err != nil {
		return nil, df.Err
	}

	names, types := df.Names(), df.Types()
	cols := make([]*structpb.Value, len(names))
	for i, name := range names {
		values, err := encodeSeries(df.Col(name), types[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}

		col := &structpb.Struct{Fields: map[string]*structpb.Value{
			"name":   structpb.NewStringValue(name),
			"type":   structpb.NewStringValue(string(types[i])),
			"values": structpb.NewListValue(&structpb.ListValue{Values: values}),
		}}
		cols[i] = structpb.NewStructValue(col)
	}

	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		"columns": structpb.NewListValue(&structpb.ListValue{Values: cols}),
	}}
	return st, nil
}

func encodeSeries(s series.Series, t series.Type) ([]*structpb.Value, error) {
	values := make([]*structpb.Value, s.Len())
	for i := range values {
		e := s.Elem(i)
		if e.IsNA() {
			values[i] = structpb.NewNullValue()
			continue
		}

		switch t {
		case series.String:
			values[i] = structpb.NewStringValue(e.String())
		case series.Float:
			f := e.Float()
			if math.IsNaN(f) {
				values[i] = structpb.NewNullValue()
			} else {
				values[i] = structpb.NewNumberValue(f)
			}
		case series.Int:
			n, err := e.Int()
			if err != nil {
				return nil, err
			}
			values[i] = structpb.NewNumberValue(float64(n))
		case series.Bool:
			b, err := e.Bool()
			if err != nil {
				return nil, err
			}
			values[i] = structpb.NewBoolValue(b)
		default:
			return nil, fmt.Errorf("unknown type %q", t)
		}
	}
	return values, nil
}

// DecodeFrame decodes the "columns" field of st into a data frame.
func DecodeFrame(st *structpb.Struct) (dataframe.DataFrame, error) {
	cols := st.GetFields()["columns"].GetListValue().GetValues()
	if len(cols) == 0 {
		return dataframe.DataFrame{}, errors.New("no columns")
	}

	out := make([]series.Series, len(cols))
	for i, v := range cols {
		fields := v.GetStructValue().GetFields()
		name := fields["name"].GetStringValue()
		if name == "" {
			return dataframe.DataFrame{}, fmt.Errorf("column %d: missing name", i)
		}

		t := series.Type(fields["type"].GetStringValue())
		switch t {
		case series.String, series.Int, series.Float, series.Bool:
		default:
			return dataframe.DataFrame{}, fmt.Errorf("column %q: unknown type %q", name, t)
		}

		values := fields["values"].GetListValue().GetValues()
		records := make([]string, len(values))
		for j, val := range values {
			rec, err := record(val, t)
			if err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("column %q, row %d: %w", name, j, err)
			}
			records[j] = rec
		}
		out[i] = series.New(records, t, name)
	}

	df := dataframe.New(out...)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

// record returns the gota record form of v.
func record(v *structpb.Value, t series.Type) (string, error) {
	if v == nil {
		return "NaN", nil
	}
	if _, ok := v.GetKind().(*structpb.Value_NullValue); ok {
		return "NaN", nil
	}

	val := v.AsInterface()
	switch t {
	case series.Int:
		n, err := cast.ToInt64E(val)
		if err != nil {
			return "", err
		}
		return cast.ToString(n), nil
	case series.Float:
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return "", err
		}
		return cast.ToString(f), nil
	case series.Bool:
		b, err := cast.ToBoolE(val)
		if err != nil {
			return "", err
		}
		return cast.ToString(b), nil
	}
	return cast.ToStringE(val)
}
