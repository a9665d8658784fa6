package climatology

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
)

var (
	latAliases = []string{"lat", "lats", "latitude", "latitudes"}
	lonAliases = []string{"lon", "lons", "long", "longs", "longitude", "longitudes"}
)

// Loader reads one variable of one climatology file into a Field.
type Loader interface {
	Load(path, variable string) (*Field, error)
}

// NetCDFLoader reads classic and HDF5-based netCDF files.
type NetCDFLoader struct{}

// Load reads variable from path and orients it with its coordinate
// variables. Packed values are unpacked with scale_factor and add_offset;
// _FillValue and missing_value cells become missing.
func (NetCDFLoader) Load(path, variable string) (*Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	v, err := nc.GetVariable(variable)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, variable, err)
	}
	shape, data, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, variable, err)
	}
	unpack(data, v.Attributes)

	g := Grid{Shape: shape, Data: data}
	for _, name := range latAliases {
		if c, err := nc.GetVariable(name); err == nil {
			_, g.Lats, _ = flatten(c.Values)
		}
	}
	for _, name := range lonAliases {
		if c, err := nc.GetVariable(name); err == nil {
			_, g.Lons, _ = flatten(c.Values)
		}
	}
	if g.Lats == nil {
		return nil, fmt.Errorf("%s: no latitude coordinate", path)
	}
	if g.Lons == nil {
		return nil, fmt.Errorf("%s: no longitude coordinate", path)
	}
	return Orient(g)
}

type attributes interface {
	Get(key string) (any, bool)
}

func unpack(data []float64, attrs attributes) {
	if attrs == nil {
		return
	}
	var fills []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if a, ok := attrs.Get(key); ok {
			if _, vs, err := flatten(a); err == nil {
				fills = append(fills, vs...)
			} else if f, ok := scalar(a); ok {
				fills = append(fills, f)
			}
		}
	}
	scale, offset := 1.0, 0.0
	if a, ok := attrs.Get("scale_factor"); ok {
		if f, ok := first(a); ok {
			scale = f
		}
	}
	if a, ok := attrs.Get("add_offset"); ok {
		if f, ok := first(a); ok {
			offset = f
		}
	}
	for i, v := range data {
		for _, fill := range fills {
			if v == fill {
				v = math.NaN()
				break
			}
		}
		data[i] = v*scale + offset
	}
}

func first(a any) (float64, bool) {
	if f, ok := scalar(a); ok {
		return f, true
	}
	if _, vs, err := flatten(a); err == nil && len(vs) > 0 {
		return vs[0], true
	}
	return 0, false
}

func scalar(a any) (float64, bool) {
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// flatten turns nested numeric slices into a shape and row-major values.
func flatten(values any) ([]int, []float64, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return nil, nil, errors.New("not an array")
	}
	var shape []int
	for t, v := rv.Type(), rv; t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		if t.Elem().Kind() == reflect.Slice {
			v = v.Index(0)
		}
	}
	var out []float64
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		if v.Kind() == reflect.Slice {
			for i := range v.Len() {
				if err := walk(v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := scalar(v.Interface())
		if !ok {
			return fmt.Errorf("non-numeric element of kind %s", v.Kind())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	return shape, out, nil
}
