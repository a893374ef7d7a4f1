package settlement

type IDGenerator interface {
	NewID() string
}
