package core

// Frame is an encoded payload pushed to a browser.
type Frame []byte

// ViewConnection abstracts the push channel of one browser view.
// Owned by the adapter; the adapter must Close() it.
type ViewConnection interface {
	TrySend(Frame) error
	Close()
}
