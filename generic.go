package fury

import "reflect"

// types for values whose Go type is not known to the reader

// UnknownStruct holds a struct read in compatible mode whose type has no
// registration on the reading side. Type is the writer's descriptor, Fields
// maps the writer's field names to their decoded values.
type UnknownStruct struct {
	Type   string
	Fields map[string]interface{}
}

var unknownStructType = reflect.TypeOf(UnknownStruct{})

type unknownStructSerializer struct{}

func (unknownStructSerializer) Write(*WriteContext, reflect.Value) error {
	return &UnregisteredTypeError{Type: unknownStructType, Reason: "values of unknown struct types cannot be written back"}
}

func (unknownStructSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	if !ctx.compatible {
		return corrupt(ctx.buf.ReaderIndex(), errBadSchema)
	}
	remote, err := ctx.readSchema()
	if err != nil {
		return err
	}

	us := UnknownStruct{
		Type:   remote.Type.String(),
		Fields: make(map[string]interface{}, len(remote.Fields)),
	}
	for i := range remote.Fields {
		f := &remote.Fields[i]
		fv, err := ctx.readFieldGeneric(f)
		if err != nil {
			return err
		}
		if fv.IsValid() {
			us.Fields[f.Name] = fv.Interface()
		} else {
			us.Fields[f.Name] = nil
		}
	}
	v.Set(reflect.ValueOf(us))
	return nil
}
