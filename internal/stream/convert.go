package stream

// Converter turns a parsed event into a caller-facing value. A conversion
// error affects only the event being converted; the stream moves on.
type Converter[T any] interface {
	FromServerEvent(ev Event) (T, error)
}

// ConverterFunc adapts a function into a Converter.
type ConverterFunc[T any] func(ev Event) (T, error)

func (f ConverterFunc[T]) FromServerEvent(ev Event) (T, error) {
	return f(ev)
}

// Raw is the identity converter.
type Raw struct{}

func (Raw) FromServerEvent(ev Event) (Event, error) {
	return ev, nil
}
