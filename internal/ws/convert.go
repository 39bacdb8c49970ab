package ws

// Converter maps between Text/Binary messages and a typed value. Control
// frames never reach FromMessage.
type Converter[T any] interface {
	FromMessage(msg Message) (T, error)
	ToMessage(v T) Message
}

// Raw is the identity converter.
type Raw struct{}

func (Raw) FromMessage(msg Message) (Message, error) { return msg, nil }

func (Raw) ToMessage(msg Message) Message { return msg }
